// Command audiodrop runs the download, transcode and deliver pipeline.
//
// The worker command consumes the job queue; serve runs the intake HTTP
// server (optionally with an embedded worker). enqueue and process submit or
// run a single job from the shell, and queue exposes maintenance helpers for
// the local sqlite backend.
package main
