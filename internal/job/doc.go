// Package job defines the queued unit of work and the names derived from it.
//
// A Job is produced by the intake API, serialized onto the queue as
// {"url","title","email"}, and decoded once per delivery attempt. The
// artifact key is derived from the title alone, so two jobs whose titles
// sanitize to the same string share a stored artifact.
package job
