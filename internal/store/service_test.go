package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/archive"
	"github.com/newsforge/newsforge/internal/extract"
	"github.com/newsforge/newsforge/internal/hash/sha256"
	"github.com/newsforge/newsforge/internal/news"
	"github.com/newsforge/newsforge/internal/storage/memory"
)

type fakeDelivery struct {
	data   []byte
	acked  bool
	nacked bool
}

func (d *fakeDelivery) Data() []byte { return d.data }
func (d *fakeDelivery) Ack()         { d.acked = true }
func (d *fakeDelivery) Nack()        { d.nacked = true }

type notePublisher struct {
	mu    sync.Mutex
	notes []news.ChangeNote
	fail  bool
}

func (p *notePublisher) Publish(_ context.Context, _ string, payload []byte) (string, error) {
	if p.fail {
		return "", context.DeadlineExceeded
	}
	var note news.ChangeNote
	if err := json.Unmarshal(payload, &note); err != nil {
		return "", err
	}
	p.mu.Lock()
	p.notes = append(p.notes, note)
	p.mu.Unlock()
	return "msg-id", nil
}

func (p *notePublisher) Close() error { return nil }

func (p *notePublisher) published() []news.ChangeNote {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]news.ChangeNote(nil), p.notes...)
}

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

func pageHTML(body string) []byte {
	return []byte("<html><head><title>Rates Hold Steady</title></head><body><article><p>" + body + "</p></article></body></html>")
}

func longBody(marker string) string {
	sentence := "The central bank left its benchmark rate unchanged, citing a gradual cooling in consumer prices. "
	return marker + " " + strings.Repeat(sentence, 8)
}

func rawPageDelivery(t *testing.T, url, body string, fetchedAt time.Time) *fakeDelivery {
	t.Helper()
	payload, err := json.Marshal(news.RawPage{
		URL:        url,
		SourceName: "example",
		FetchedAt:  fetchedAt,
		HTTPStatus: 200,
		Body:       pageHTML(body),
	})
	require.NoError(t, err)
	return &fakeDelivery{data: payload}
}

func articleID(t *testing.T, url string) string {
	t.Helper()
	id, err := news.ArticleID(url)
	require.NoError(t, err)
	return id
}

func newTestService(articles news.ArticleStore, pub news.Publisher, blobs archive.BlobStore, at time.Time) *Service {
	return New(
		Config{Workers: 1, NotesTopic: "article-changes"},
		nil,
		articles,
		pub,
		blobs,
		extract.New(120),
		sha256.New(),
		fixedClock{t: at},
		zap.NewNop(),
	)
}

func TestService_InsertThenRedeliverIsIdempotent(t *testing.T) {
	t.Parallel()

	articles := memory.NewArticleStore()
	pub := &notePublisher{}
	now := time.Unix(1700000000, 0).UTC()
	svc := newTestService(articles, pub, nil, now)

	url := "https://news.example/economy/rates"
	first := rawPageDelivery(t, url, longBody("v1"), now)
	svc.Handle(context.Background(), first)
	require.True(t, first.acked)
	require.False(t, first.nacked)

	// Redelivery of the same page: same content hash, no new version or note.
	second := rawPageDelivery(t, url, longBody("v1"), now.Add(time.Hour))
	svc.Handle(context.Background(), second)
	require.True(t, second.acked)

	a, err := articles.Get(context.Background(), articleID(t, url))
	require.NoError(t, err)
	require.Equal(t, int64(1), a.Version)
	require.Len(t, pub.published(), 1)
	require.Equal(t, int64(1), pub.published()[0].Version)
}

func TestService_ChangedContentBumpsVersion(t *testing.T) {
	t.Parallel()

	articles := memory.NewArticleStore()
	pub := &notePublisher{}
	now := time.Unix(1700000000, 0).UTC()
	svc := newTestService(articles, pub, nil, now)

	url := "https://news.example/economy/rates"
	svc.Handle(context.Background(), rawPageDelivery(t, url, longBody("v1"), now))
	svc.Handle(context.Background(), rawPageDelivery(t, url, longBody("v2 corrected figures"), now.Add(time.Hour)))

	a, err := articles.Get(context.Background(), articleID(t, url))
	require.NoError(t, err)
	require.Equal(t, int64(2), a.Version)
	require.Contains(t, a.BodyText, "v2 corrected figures")

	notes := pub.published()
	require.Len(t, notes, 2)
	require.Equal(t, int64(1), notes[0].Version)
	require.Equal(t, int64(2), notes[1].Version)
}

func TestService_DuplicateBodyTouchesLastSeenOnly(t *testing.T) {
	t.Parallel()

	articles := memory.NewArticleStore()
	pub := &notePublisher{}
	t0 := time.Unix(1700000000, 0).UTC()
	url := "https://news.example/economy/rates"

	newTestService(articles, pub, nil, t0).Handle(context.Background(), rawPageDelivery(t, url, longBody("same"), t0))
	t1 := t0.Add(2 * time.Hour)
	newTestService(articles, pub, nil, t1).Handle(context.Background(), rawPageDelivery(t, url, longBody("same"), t1))

	a, err := articles.Get(context.Background(), articleID(t, url))
	require.NoError(t, err)
	require.Equal(t, int64(1), a.Version)
	require.Equal(t, t0, a.FirstSeenAt)
	require.Equal(t, t1, a.LastSeenAt)
	require.Len(t, pub.published(), 1)
}

func TestService_ShortBodyAckedAndDropped(t *testing.T) {
	t.Parallel()

	articles := memory.NewArticleStore()
	pub := &notePublisher{}
	now := time.Unix(1700000000, 0).UTC()
	svc := newTestService(articles, pub, nil, now)

	d := rawPageDelivery(t, "https://news.example/hub", "Too short.", now)
	svc.Handle(context.Background(), d)
	require.True(t, d.acked)
	require.False(t, d.nacked)
	require.Equal(t, 0, articles.Len())
	require.Empty(t, pub.published())
}

func TestService_MalformedPayloadAcked(t *testing.T) {
	t.Parallel()

	articles := memory.NewArticleStore()
	svc := newTestService(articles, &notePublisher{}, nil, time.Now())

	d := &fakeDelivery{data: []byte("not json")}
	svc.Handle(context.Background(), d)
	require.True(t, d.acked)
	require.Equal(t, 0, articles.Len())
}

func TestService_UnparseableURLNacked(t *testing.T) {
	t.Parallel()

	articles := memory.NewArticleStore()
	pub := &notePublisher{}
	now := time.Unix(1700000000, 0).UTC()
	svc := newTestService(articles, pub, nil, now)

	d := rawPageDelivery(t, "https://news.example/%zz", longBody("v1"), now)
	svc.Handle(context.Background(), d)
	require.True(t, d.nacked)
	require.False(t, d.acked)
	require.Equal(t, 0, articles.Len())
	require.Empty(t, pub.published())
}

func TestService_NotifyFailureNacks(t *testing.T) {
	t.Parallel()

	articles := memory.NewArticleStore()
	pub := &notePublisher{fail: true}
	now := time.Unix(1700000000, 0).UTC()
	svc := newTestService(articles, pub, nil, now)

	d := rawPageDelivery(t, "https://news.example/economy/rates", longBody("v1"), now)
	svc.Handle(context.Background(), d)
	require.True(t, d.nacked)
	require.False(t, d.acked)
}

func TestService_ArchivesRawPage(t *testing.T) {
	t.Parallel()

	articles := memory.NewArticleStore()
	blobs := archive.NewMemoryStore()
	now := time.Unix(1700000000, 0).UTC()
	svc := newTestService(articles, &notePublisher{}, blobs, now)

	url := "https://news.example/economy/rates"
	svc.Handle(context.Background(), rawPageDelivery(t, url, longBody("v1"), now))

	a, err := articles.Get(context.Background(), articleID(t, url))
	require.NoError(t, err)
	snapshot, ok := blobs.Get(archive.Key("example", a.ContentHash))
	require.True(t, ok)
	require.Contains(t, string(snapshot), "central bank")
}
