// Package api is the intake HTTP server.
//
// It validates job requests and enqueues them, issues read links for stored
// artifacts, and serves filesystem-backend artifacts behind signed links.
// Routing uses chi; every request gets an X-Request-ID that is echoed back
// and attached to log lines.
package api
