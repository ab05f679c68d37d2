// Package worker consumes the job queue and hands each message to the
// pipeline.
//
// A Worker runs a fixed number of receive loops under one errgroup. Every
// message is acked once the pipeline returns, whatever the outcome, because
// failures have already been reported to the requester. A message is left
// un-acked only when the process stops before the pipeline returns; the queue
// then redelivers it after the visibility timeout. Payloads that cannot be
// decoded are acked and dropped with an error log.
//
// In-flight jobs are not interrupted by shutdown. They run on a context
// detached from the worker's and bounded by the job budget.
package worker
