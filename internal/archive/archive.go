// Package archive stores the raw HTML of fetched pages so extraction can be
// replayed after parser changes. Objects are keyed <source>/<content hash>.html.
package archive

import (
	"context"
	"fmt"
)

// BlobStore writes raw page snapshots to durable storage. Put returns the
// location of the stored object.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Close() error
}

// Key builds the object key for one page snapshot.
func Key(sourceName, contentHash string) string {
	return fmt.Sprintf("%s/%s.html", sourceName, contentHash)
}

// Nop discards snapshots. Used when archiving is disabled.
type Nop struct{}

func (Nop) Put(_ context.Context, key string, _ []byte) (string, error) {
	return key, nil
}

func (Nop) Close() error { return nil }
