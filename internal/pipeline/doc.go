// Package pipeline runs a single job through cache check, fetch, transcode,
// delivery and persistence.
//
// Process never returns an error. Every failure after the job is accepted is
// converted into exactly one failure message to the requester. That report is
// sent on a context detached from the job so an exhausted job budget can
// still be explained. A report that cannot be sent is logged and raised to
// operators through the notifications service.
//
// A cache hit delivers the stored artifact as an attachment. Under the
// refresh policy the pipeline then re-fetches, re-transcodes and re-persists
// the artifact without contacting the requester again. Under the terminal
// policy it stops after the cached delivery.
package pipeline
