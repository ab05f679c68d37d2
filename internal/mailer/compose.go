package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

const attachmentHTML = `<h2>Your file is attached</h2>
<p>File: {{.Title}}</p>
<p>Original URL: {{.SourceURL}}</p>
`

const attachmentText = `Your file is attached
File: {{.Title}}
Original URL: {{.SourceURL}}
`

const linkHTML = `<h2>Your download is ready</h2>
<p>File: {{.Title}}</p>
<p>Your file was too large to send via email. You can download it here:</p>
<p><a href="{{.Link}}">Download your file</a></p>
<p><small>This download link will expire in {{.Validity}}.</small></p>
`

const linkText = `Your download is ready
File: {{.Title}}

Your file was too large to send via email. You can download it here:
{{.Link}}

This download link will expire in {{.Validity}}.
`

const failureHTML = `<h2>Download Processing Failed</h2>
<p>We encountered an error while processing your download request.</p>
<h3>Details:</h3>
<ul>
  <li><strong>File:</strong> {{.Title}}</li>
  <li><strong>Source:</strong> {{.SourceURL}}</li>
  <li><strong>Error:</strong> {{.Error}}</li>
</ul>
<p>Please try again later or contact support if the issue persists.</p>
`

const failureText = `Download Processing Failed

We encountered an error while processing your download request.

Details:
- File: {{.Title}}
- Source: {{.SourceURL}}
- Error: {{.Error}}

Please try again later or contact support if the issue persists.
`

type bodyTemplates struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

func mustTemplates(name, html, text string) bodyTemplates {
	return bodyTemplates{
		html: htmltemplate.Must(htmltemplate.New(name).Parse(html)),
		text: texttemplate.Must(texttemplate.New(name).Parse(text)),
	}
}

var (
	attachmentTemplates = mustTemplates("attachment", attachmentHTML, attachmentText)
	linkTemplates       = mustTemplates("link", linkHTML, linkText)
	failureTemplates    = mustTemplates("failure", failureHTML, failureText)
)

func (t bodyTemplates) render(data any) (string, string, error) {
	var html, text bytes.Buffer
	if err := t.html.Execute(&html, data); err != nil {
		return "", "", fmt.Errorf("render html body: %w", err)
	}
	if err := t.text.Execute(&text, data); err != nil {
		return "", "", fmt.Errorf("render text body: %w", err)
	}
	return html.String(), text.String(), nil
}

func composeAttachment(from, to, title, sourceURL string, attachment Attachment) (Message, error) {
	html, text, err := attachmentTemplates.render(struct{ Title, SourceURL string }{title, sourceURL})
	if err != nil {
		return Message{}, err
	}
	return Message{
		From:        from,
		To:          to,
		Subject:     "Download " + title,
		HTML:        html,
		Text:        text,
		Attachments: []Attachment{attachment},
	}, nil
}

func composeLink(from, to, title, link string, validFor time.Duration) (Message, error) {
	data := struct{ Title, Link, Validity string }{title, link, DescribeValidity(validFor)}
	html, text, err := linkTemplates.render(data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		From:    from,
		To:      to,
		Subject: "Download Link for " + title,
		HTML:    html,
		Text:    text,
	}, nil
}

func composeFailure(from, to, title, sourceURL, message string) (Message, error) {
	data := struct{ Title, SourceURL, Error string }{title, sourceURL, strings.TrimSpace(message)}
	html, text, err := failureTemplates.render(data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		From:    from,
		To:      to,
		Subject: "Processing Failed: " + title,
		HTML:    html,
		Text:    text,
	}, nil
}

// DescribeValidity renders a link lifetime such as "24 hours" or "90 minutes".
func DescribeValidity(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return plural(int64(d.Round(time.Second)/time.Second), "second")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
