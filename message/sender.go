package message

import (
	"regexp"
	"strings"
)

// UnknownSender is used when the From header is missing.
const UnknownSender = "unknown@unknown.com"

// Sender is a parsed From header. Name is empty when the header carried no
// display name.
type Sender struct {
	Email string
	Name  string
}

// Handles `"Display Name" <addr@host>`, `Display Name <addr@host>`,
// `<addr@host>` and `addr@host`. The name group only exists in front of an
// angle bracket, otherwise a bare address would be split at its first
// character.
var senderRe = regexp.MustCompile(`^(?:"?([^"<]*?)"?\s*<)?([^<>\s]+@[^<>\s]+)>?$`)

// ParseSender splits a raw From header into address and display name.
func ParseSender(from string) Sender {
	from = strings.TrimSpace(from)
	if from == "" {
		return Sender{Email: UnknownSender}
	}

	m := senderRe.FindStringSubmatch(from)
	if m == nil {
		return Sender{Email: from}
	}

	email := strings.TrimSpace(m[2])
	if email == "" {
		email = from
	}
	return Sender{
		Email: email,
		Name:  strings.TrimSpace(m[1]),
	}
}

// String formats the sender the way a From header would show it.
func (s Sender) String() string {
	if s.Name == "" {
		return s.Email
	}
	return s.Name + " <" + s.Email + ">"
}
