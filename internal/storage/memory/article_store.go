// Package memory implements the article store on an in-process map. Used by
// tests and single-process development runs.
package memory

import (
	"context"
	"sync"

	"github.com/newsforge/newsforge/internal/news"
)

// ArticleStore keeps articles in a map guarded by a mutex. Version guards
// behave exactly like the Postgres store's.
type ArticleStore struct {
	mu       sync.RWMutex
	articles map[string]news.Article
}

func NewArticleStore() *ArticleStore {
	return &ArticleStore{articles: make(map[string]news.Article)}
}

func (s *ArticleStore) Get(_ context.Context, id string) (news.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return news.Article{}, news.ErrNotFound
	}
	return a, nil
}

func (s *ArticleStore) Insert(_ context.Context, a news.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[a.ID]; ok {
		return news.ErrVersionConflict
	}
	s.articles[a.ID] = a
	return nil
}

func (s *ArticleStore) Update(_ context.Context, a news.Article, expect int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.articles[a.ID]
	if !ok || current.Version != expect {
		return news.ErrVersionConflict
	}
	s.articles[a.ID] = a
	return nil
}

func (s *ArticleStore) Ping(context.Context) error { return nil }

func (s *ArticleStore) Close() {}

// Len reports how many articles are stored. Test helper.
func (s *ArticleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}
