package mailer

import (
	"context"
	"fmt"
	"time"
)

// Attachment is an inline file carried as base64 text.
type Attachment struct {
	Name        string
	ContentType string
	Base64      string
}

// Message is a fully composed email.
type Message struct {
	From        string
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Transport hands a composed message to a delivery mechanism. A nil error
// means the transport accepted the message, not that it was read.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer is the notification surface the pipeline depends on.
type Mailer interface {
	DeliverAttachment(ctx context.Context, to, title, sourceURL string, attachment Attachment) error
	DeliverLink(ctx context.Context, to, title, link string, validFor time.Duration) error
	DeliverFailure(ctx context.Context, to, title, sourceURL, message string) error
}

// Client composes requester messages and sends them through a Transport.
type Client struct {
	from      string
	transport Transport
}

// NewClient returns a Client that sends as from.
func NewClient(from string, transport Transport) *Client {
	return &Client{from: from, transport: transport}
}

func (c *Client) DeliverAttachment(ctx context.Context, to, title, sourceURL string, attachment Attachment) error {
	msg, err := composeAttachment(c.from, to, title, sourceURL, attachment)
	if err != nil {
		return err
	}
	return c.send(ctx, msg)
}

func (c *Client) DeliverLink(ctx context.Context, to, title, link string, validFor time.Duration) error {
	msg, err := composeLink(c.from, to, title, link, validFor)
	if err != nil {
		return err
	}
	return c.send(ctx, msg)
}

func (c *Client) DeliverFailure(ctx context.Context, to, title, sourceURL, message string) error {
	msg, err := composeFailure(c.from, to, title, sourceURL, message)
	if err != nil {
		return err
	}
	return c.send(ctx, msg)
}

func (c *Client) send(ctx context.Context, msg Message) error {
	if err := c.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %q to %s: %w", msg.Subject, msg.To, err)
	}
	return nil
}
