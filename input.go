package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mnako/letters"

	"newslettersync_go/message"
)

// loadMessage reads an .eml file, or treats any other file as a bare HTML
// body.
func loadMessage(path string) (message.Parsed, error) {
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if !strings.EqualFold(filepath.Ext(path), ".eml") {
		raw, err := os.ReadFile(path)
		if err != nil {
			return message.Parsed{}, fmt.Errorf("read %s: %w", path, err)
		}
		return message.Parsed{
			ID:         id,
			Sender:     message.ParseSender(""),
			Subject:    message.NoSubject,
			ReceivedAt: time.Now(),
			HTML:       string(raw),
		}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return message.Parsed{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	email, err := letters.ParseEmail(f)
	if err != nil {
		return message.Parsed{}, fmt.Errorf("parse EML %s: %w", path, err)
	}
	return fromEmail(id, email), nil
}

func fromEmail(id string, email letters.Email) message.Parsed {
	sender := message.ParseSender("")
	if len(email.Headers.From) > 0 && email.Headers.From[0] != nil {
		from := email.Headers.From[0]
		sender = message.ParseSender(from.Address)
		sender.Name = strings.TrimSpace(from.Name)
	}

	subject := strings.TrimSpace(email.Headers.Subject)
	if subject == "" {
		subject = message.NoSubject
	}

	received := email.Headers.Date
	if received.IsZero() {
		received = time.Now()
	}

	return message.Parsed{
		ID:         id,
		Sender:     sender,
		Subject:    subject,
		ReceivedAt: received,
		HTML:       email.HTML,
		PlainText:  email.Text,
	}
}
