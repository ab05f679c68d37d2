// Package mailer composes and sends the three requester messages: the
// artifact as an attachment, an expiring download link, and a failure notice.
//
// Composition happens once in Client; a Transport only moves a finished
// Message. The ses transport uses Amazon SES, smtp relays raw MIME to a mail
// server, and outbox writes .eml files for local runs and inspection.
package mailer
