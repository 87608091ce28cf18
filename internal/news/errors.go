package news

import "errors"

// Sentinel errors shared across pipeline stages.
var (
	// ErrNotFound reports a missing article or index record.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict reports a lost optimistic-concurrency race on an
	// article upsert. Callers reread and retry a bounded number of times.
	ErrVersionConflict = errors.New("version conflict")

	// ErrEmptyExtraction reports that a page yielded no usable article body.
	// It is not a failure: the store acks and drops the message.
	ErrEmptyExtraction = errors.New("no extractable article body")
)
