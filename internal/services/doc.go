// Package services defines shared utilities consumed by the pipeline stages
// and the external integrations they call.
//
// Key responsibilities:
//   - Context helpers that stamp job identifiers, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that tag failures with the
//     component that produced them (fetch, transcode, store, notify) so the
//     orchestrator can report them uniformly.
//
// Use these helpers when wiring new stage logic so failure reporting and
// observability stay uniform across the pipeline.
package services
