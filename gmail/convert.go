package gmail

import (
	gmail "google.golang.org/api/gmail/v1"

	"newslettersync_go/message"
)

// FromGmail converts an API message into the provider-neutral tree.
func FromGmail(m *gmail.Message) message.RawMessage {
	if m == nil {
		return message.RawMessage{}
	}
	return message.RawMessage{
		ID:           m.Id,
		InternalDate: m.InternalDate,
		Payload:      convertPart(m.Payload),
	}
}

func convertPart(p *gmail.MessagePart) *message.Part {
	if p == nil {
		return nil
	}

	out := &message.Part{MimeType: p.MimeType}
	for _, h := range p.Headers {
		if h == nil {
			continue
		}
		out.Headers = append(out.Headers, message.Header{Name: h.Name, Value: h.Value})
	}
	if p.Body != nil {
		out.Data = p.Body.Data
	}
	for _, c := range p.Parts {
		if c := convertPart(c); c != nil {
			out.Parts = append(out.Parts, c)
		}
	}
	return out
}
