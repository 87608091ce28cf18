// Package queue provides the message transports that connect the pipeline
// stages. The pubsub subpackage backs production deployments with Google
// Cloud Pub/Sub; the memory subpackage backs tests and single-process runs.
//
// Both satisfy news.Publisher and news.Consumer with at-least-once
// semantics: a delivery is redelivered until it is Acked.
package queue
