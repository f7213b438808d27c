package message

import (
	"encoding/base64"
	"strings"
)

// FindBody walks the part tree depth-first, pre-order, and returns the
// decoded payload of the first part whose MIME type is mimeType. The second
// result is false when no such part exists, which is normal for HTML-only
// or plain-text-only messages.
func FindBody(part *Part, mimeType string) (string, bool) {
	if part == nil {
		return "", false
	}

	if strings.EqualFold(part.MimeType, mimeType) && part.Data != "" {
		if raw, err := DecodeData(part.Data); err == nil {
			return string(raw), true
		}
	}

	for _, child := range part.Parts {
		if body, ok := FindBody(child, mimeType); ok {
			return body, true
		}
	}
	return "", false
}

// DecodeData decodes URL-safe base64, padded or not. Gmail sends both.
func DecodeData(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if raw, err := base64.URLEncoding.DecodeString(data); err == nil {
		return raw, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}
