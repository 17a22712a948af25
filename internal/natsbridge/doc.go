// Package natsbridge connects seda stages to NATS.
//
// A [Source] subscribes to a subject and hands each payload to a
// [Handler], usually one that dispatches into the first stage of a pipeline.
// A [RejectPublisher] is a stage processor that publishes reject messages
// as JSON [RejectRecord]s with the reject type and message type as headers.
//
// Delivery stays at-most-once: a payload refused by the handler, or shed by
// an overloaded stage, is not redelivered.
package natsbridge
