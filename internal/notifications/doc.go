// Package notifications raises operator alerts via ntfy.
//
// Requesters hear about their jobs by email through the mailer package. This
// package is the secondary channel for the people running audiodrop: it
// reports failures that the requester never sees, most importantly a failure
// notice that itself could not be delivered. When no topic is configured a
// no-op implementation is returned.
package notifications
