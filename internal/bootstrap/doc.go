// Package bootstrap turns a loaded configuration into wired collaborators:
// artifact store, queue, mail transport, alerts and the pipeline itself.
//
// AWS clients share one aws.Config, loaded only when a cloud backend is
// selected.
package bootstrap
