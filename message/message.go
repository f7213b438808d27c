// Package message turns raw mail-provider message trees into the fields the
// enrichment pipeline and its caller need: sender, subject, received time and
// the decoded HTML and plain-text bodies.
package message

import (
	"strings"
	"time"
)

const (
	MimeHTML  = "text/html"
	MimePlain = "text/plain"

	NoSubject = "(no subject)"
)

// Header is a single message header.
type Header struct {
	Name  string
	Value string
}

// Part is one node of a (possibly nested multipart) message.
type Part struct {
	MimeType string
	Headers  []Header
	// Data is the base64url-encoded payload, empty for container parts.
	Data  string
	Parts []*Part
}

// RawMessage is one message as handed over by the ingestion side.
type RawMessage struct {
	ID           string
	InternalDate int64 // milliseconds since the epoch
	Payload      *Part
}

// Parsed is what survives of a RawMessage after parsing.
type Parsed struct {
	ID         string
	Sender     Sender
	Subject    string
	ReceivedAt time.Time
	HTML       string
	PlainText  string
}

// Body returns the text the pipeline should run on: the HTML body when the
// message has one, otherwise the plain-text body.
func (p Parsed) Body() string {
	if p.HTML != "" {
		return p.HTML
	}
	return p.PlainText
}

// Parse extracts headers and bodies from raw. It never fails; missing pieces
// come back as their zero or sentinel values.
func Parse(raw RawMessage) Parsed {
	var headers []Header
	if raw.Payload != nil {
		headers = raw.Payload.Headers
	}

	subject := HeaderValue(headers, "Subject")
	if strings.TrimSpace(subject) == "" {
		subject = NoSubject
	}

	html, _ := FindBody(raw.Payload, MimeHTML)
	plain, _ := FindBody(raw.Payload, MimePlain)

	return Parsed{
		ID:         raw.ID,
		Sender:     ParseSender(HeaderValue(headers, "From")),
		Subject:    subject,
		ReceivedAt: ReceivedAt(raw.InternalDate),
		HTML:       html,
		PlainText:  plain,
	}
}

// HeaderValue returns the first header called name, compared
// case-insensitively.
func HeaderValue(headers []Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// ReceivedAt converts a provider internal date in milliseconds. Zero means
// the provider did not report one and the current time is used.
func ReceivedAt(internalDate int64) time.Time {
	if internalDate <= 0 {
		return time.Now()
	}
	return time.UnixMilli(internalDate)
}
