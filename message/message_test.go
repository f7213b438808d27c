package message

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enc(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestParseSender(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Sender
	}{
		{
			name:     "quoted display name",
			input:    `"Byte Byte Go" <bytebytego@substack.com>`,
			expected: Sender{Email: "bytebytego@substack.com", Name: "Byte Byte Go"},
		},
		{
			name:     "unquoted display name",
			input:    "Vested Finance <nl@email.vestedfinance.com>",
			expected: Sender{Email: "nl@email.vestedfinance.com", Name: "Vested Finance"},
		},
		{
			name:     "bare address",
			input:    "news@example.com",
			expected: Sender{Email: "news@example.com"},
		},
		{
			name:     "angle brackets only",
			input:    "<news@example.com>",
			expected: Sender{Email: "news@example.com"},
		},
		{
			name:     "empty header",
			input:    "",
			expected: Sender{Email: UnknownSender},
		},
		{
			name:     "whitespace only",
			input:    "   ",
			expected: Sender{Email: UnknownSender},
		},
		{
			name:     "no address falls back to whole string",
			input:    "  Mailer Daemon  ",
			expected: Sender{Email: "Mailer Daemon"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseSender(tt.input))
		})
	}
}

func TestSenderString(t *testing.T) {
	assert.Equal(t, "a@b.test", Sender{Email: "a@b.test"}.String())
	assert.Equal(t, "Ann <a@b.test>", Sender{Email: "a@b.test", Name: "Ann"}.String())
}

func TestFindBody(t *testing.T) {
	tree := &Part{
		MimeType: "multipart/mixed",
		Parts: []*Part{
			{
				MimeType: "multipart/alternative",
				Parts: []*Part{
					{MimeType: MimePlain, Data: enc("first plain")},
					{MimeType: MimeHTML, Data: enc("<p>first html</p>")},
				},
			},
			{MimeType: MimeHTML, Data: enc("<p>second html</p>")},
		},
	}

	html, ok := FindBody(tree, MimeHTML)
	require.True(t, ok)
	assert.Equal(t, "<p>first html</p>", html)

	plain, ok := FindBody(tree, MimePlain)
	require.True(t, ok)
	assert.Equal(t, "first plain", plain)
}

func TestFindBodyMissing(t *testing.T) {
	tree := &Part{MimeType: MimePlain, Data: enc("only text")}

	body, ok := FindBody(tree, MimeHTML)
	assert.False(t, ok)
	assert.Empty(t, body)

	body, ok = FindBody(nil, MimeHTML)
	assert.False(t, ok)
	assert.Empty(t, body)
}

func TestFindBodySkipsEmptyPayload(t *testing.T) {
	tree := &Part{
		MimeType: "multipart/alternative",
		Parts: []*Part{
			{MimeType: MimeHTML},
			{MimeType: MimeHTML, Data: enc("<b>x</b>")},
		},
	}

	html, ok := FindBody(tree, MimeHTML)
	require.True(t, ok)
	assert.Equal(t, "<b>x</b>", html)
}

func TestDecodeDataUnpadded(t *testing.T) {
	raw := base64.RawURLEncoding.EncodeToString([]byte("héllo ~~ world??"))
	out, err := DecodeData(raw)
	require.NoError(t, err)
	assert.Equal(t, "héllo ~~ world??", string(out))
}

func TestParse(t *testing.T) {
	raw := RawMessage{
		ID:           "18c2f",
		InternalDate: 1700000000000,
		Payload: &Part{
			MimeType: "multipart/alternative",
			Headers: []Header{
				{Name: "from", Value: `"Daily Brief" <brief@example.com>`},
				{Name: "Subject", Value: "Monday edition"},
			},
			Parts: []*Part{
				{MimeType: MimePlain, Data: enc("plain body")},
				{MimeType: MimeHTML, Data: enc("<p>html body</p>")},
			},
		},
	}

	p := Parse(raw)
	assert.Equal(t, "18c2f", p.ID)
	assert.Equal(t, Sender{Email: "brief@example.com", Name: "Daily Brief"}, p.Sender)
	assert.Equal(t, "Monday edition", p.Subject)
	assert.True(t, p.ReceivedAt.Equal(time.UnixMilli(1700000000000)))
	assert.Equal(t, "<p>html body</p>", p.HTML)
	assert.Equal(t, "plain body", p.PlainText)
	assert.Equal(t, p.HTML, p.Body())
}

func TestParseDefaults(t *testing.T) {
	before := time.Now()
	p := Parse(RawMessage{ID: "x"})

	assert.Equal(t, NoSubject, p.Subject)
	assert.Equal(t, UnknownSender, p.Sender.Email)
	assert.False(t, p.ReceivedAt.Before(before))
	assert.Empty(t, p.Body())
}

func TestBodyFallsBackToPlainText(t *testing.T) {
	p := Parsed{PlainText: "just text"}
	assert.Equal(t, "just text", p.Body())
}
