// Package index implements the hybrid search index: BadgerDB for durable
// records, with in-memory lexical and vector structures rebuilt at open and
// kept in lockstep under a read-write mutex. An upsert is atomic per ID: a
// reader never observes lexical fields without the matching embedding.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/news"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

const recordPrefix = "rec:"

// Config locates the index on disk.
type Config struct {
	Path     string
	InMemory bool
}

// Index is the badger-backed news.SearchIndex.
type Index struct {
	db  *badger.DB
	log *zap.Logger

	mu          sync.RWMutex
	postings    map[string]map[string]int // term -> id -> tf
	docLengths  map[string]int
	totalLength int
	embeddings  map[string][]float32
}

type badgerLoggerAdapter struct {
	log *zap.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.log.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.log.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.log.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.log.Debug(fmt.Sprintf(msg, items...))
}

// Open opens (or creates) the index and rebuilds the in-memory structures
// from the stored records.
func Open(cfg Config, log *zap.Logger) (*Index, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(cfg.Path)
		if os.IsNotExist(err) {
			if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
				return nil, fmt.Errorf("create index dir %s: %w", cfg.Path, err)
			}
		} else if err != nil {
			return nil, err
		} else if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", cfg.Path)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = &badgerLoggerAdapter{log: log}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	idx := &Index{
		db:         db,
		log:        log,
		postings:   make(map[string]map[string]int),
		docLengths: make(map[string]int),
		embeddings: make(map[string][]float32),
	}
	if err := idx.rebuild(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("rebuild index state: %w", err)
	}
	return idx, nil
}

// rebuild scans every stored record into the in-memory structures.
func (idx *Index) rebuild() error {
	count := 0
	err := idx.db.View(func(tx *badger.Txn) error {
		it := tx.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(recordPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec news.IndexRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			idx.apply(rec)
			count++
		}
		return nil
	})
	if err != nil {
		return err
	}
	if count > 0 {
		idx.log.Info("index state rebuilt", zap.Int("records", count))
	}
	return nil
}

// Upsert writes the record to badger first, then swaps the in-memory state
// for that ID under the write lock.
func (idx *Index) Upsert(_ context.Context, rec news.IndexRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}
	err = idx.db.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(recordPrefix+rec.ID), value)
	})
	if err != nil {
		return fmt.Errorf("write record %s: %w", rec.ID, err)
	}

	idx.mu.Lock()
	idx.remove(rec.ID)
	idx.apply(rec)
	idx.mu.Unlock()
	return nil
}

// apply adds one record to the in-memory structures. Callers hold the write
// lock (or exclusive access during rebuild).
func (idx *Index) apply(rec news.IndexRecord) {
	tokens := tokenize(rec.Title + " " + rec.BodyText)
	for term, tf := range termFrequencies(tokens) {
		docs, ok := idx.postings[term]
		if !ok {
			docs = make(map[string]int)
			idx.postings[term] = docs
		}
		docs[rec.ID] = tf
	}
	idx.docLengths[rec.ID] = len(tokens)
	idx.totalLength += len(tokens)
	idx.embeddings[rec.ID] = rec.Embedding
}

// remove deletes one document from the in-memory structures.
func (idx *Index) remove(id string) {
	length, ok := idx.docLengths[id]
	if !ok {
		return
	}
	for term, docs := range idx.postings {
		if _, ok := docs[id]; ok {
			delete(docs, id)
			if len(docs) == 0 {
				delete(idx.postings, term)
			}
		}
	}
	delete(idx.docLengths, id)
	idx.totalLength -= length
	delete(idx.embeddings, id)
}

// Get reads the stored record, or news.ErrNotFound.
func (idx *Index) Get(_ context.Context, id string) (news.IndexRecord, error) {
	var rec news.IndexRecord
	err := idx.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(recordPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err == badger.ErrKeyNotFound {
		return news.IndexRecord{}, news.ErrNotFound
	}
	if err != nil {
		return news.IndexRecord{}, fmt.Errorf("read record %s: %w", id, err)
	}
	return rec, nil
}

// Lexical ranks documents against the query with BM25 and returns the top
// limit hits, score descending, ties by ID ascending.
func (idx *Index) Lexical(_ context.Context, query string, limit int) ([]news.SearchHit, error) {
	terms := tokenize(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docLengths)
	if n == 0 {
		return nil, nil
	}
	avgLength := float64(idx.totalLength) / float64(n)

	scores := make(map[string]float64)
	for _, term := range terms {
		docs, ok := idx.postings[term]
		if !ok {
			continue
		}
		df := len(docs)
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
		for id, tf := range docs {
			norm := 1 - bm25B + bm25B*float64(idx.docLengths[id])/avgLength
			scores[id] += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
		}
	}
	return topHits(scores, limit), nil
}

// Vector ranks documents by cosine similarity to the embedding and returns
// the top limit hits.
func (idx *Index) Vector(_ context.Context, embedding []float32, limit int) ([]news.SearchHit, error) {
	if len(embedding) == 0 || limit <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	scores := make(map[string]float64)
	for id, candidate := range idx.embeddings {
		if sim, ok := cosine(embedding, candidate); ok {
			scores[id] = sim
		}
	}
	return topHits(scores, limit), nil
}

// Ping reports whether the index is usable.
func (idx *Index) Ping(context.Context) error {
	if idx.db.IsClosed() {
		return fmt.Errorf("index is closed")
	}
	return nil
}

// Close closes the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// topHits sorts scored documents descending, ties by ID ascending, and caps
// the result at limit with ranks assigned from 1.
func topHits(scores map[string]float64, limit int) []news.SearchHit {
	hits := make([]news.SearchHit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, news.SearchHit{ID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits
}

// cosine returns the cosine similarity of two vectors, or false when the
// dimensions differ or either vector is zero.
func cosine(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

var _ news.SearchIndex = (*Index)(nil)
