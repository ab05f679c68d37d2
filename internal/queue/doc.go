// Package queue delivers job payloads to workers with at-least-once semantics.
//
// Queue is the contract the worker consumes: Send, Receive with a visibility
// timeout, and Ack. A received message that is not acked becomes visible again
// once its visibility timeout lapses, which is how a crashed or timed-out job
// is retried. Two adapters implement it. SQLiteQueue keeps messages in a local
// database and moves messages that exceed the receive limit to a dead state.
// SQSQueue consumes an Amazon SQS queue, where dead-lettering is configured on
// the queue's redrive policy.
//
// The sqlite schema lives in schema.sql. Schema changes bump schemaVersion;
// operators purge or delete the database to adopt a new schema.
package queue
