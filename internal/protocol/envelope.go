package protocol

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/pborman/uuid"

	"github.com/eventrelay/relay/internal/basictypes"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// ContentTypeEnvelope is the MIME type of envelope payloads.
const ContentTypeEnvelope = "application/x-sentry-envelope"

// EventID is a 32-character lowercase hexadecimal UUID without dashes.
type EventID string

// NewEventID generates a random event ID.
func NewEventID() EventID {
	return EventID(hex.EncodeToString(uuid.NewRandom()))
}

// ParseEventID accepts UUIDs with or without dashes and normalizes them.
func ParseEventID(s string) (EventID, bool) {
	parsed := uuid.Parse(s)
	if parsed == nil {
		if len(s) != 32 {
			return "", false
		}
		raw, err := hex.DecodeString(s)
		if err != nil {
			return "", false
		}
		parsed = uuid.UUID(raw)
	}
	return EventID(hex.EncodeToString(parsed)), true
}

// Envelope is a container of items that an SDK sends in one request.
type Envelope struct {
	// Headers is the envelope header. Unknown fields are preserved.
	Headers Object
	Items   []*Item
}

// Item is one entry of an envelope.
type Item struct {
	// Headers is the item header. The "length" field is recomputed when serializing.
	Headers Object
	Payload []byte
}

// NewEnvelope creates an envelope with the given event ID, which may be empty.
func NewEnvelope(eventID EventID) *Envelope {
	e := &Envelope{Headers: Object{}}
	if eventID != "" {
		e.Headers["event_id"] = string(eventID)
	}
	return e
}

// NewItem creates an item of the given type.
func NewItem(t ItemType, payload []byte) *Item {
	return &Item{Headers: Object{"type": string(t)}, Payload: payload}
}

// EventID returns the "event_id" header.
func (e *Envelope) EventID() EventID {
	s, _ := e.Headers.StringField("event_id")
	return EventID(s)
}

// DSN returns the "dsn" header.
func (e *Envelope) DSN() string {
	s, _ := e.Headers.StringField("dsn")
	return s
}

// SentAt returns the "sent_at" header.
func (e *Envelope) SentAt() string {
	s, _ := e.Headers.StringField("sent_at")
	return s
}

// PublicKey returns the project key of the DSN header, if there is a valid one.
func (e *Envelope) PublicKey() (basictypes.ProjectKey, bool) {
	dsn, err := ParseDSN(e.DSN())
	if err != nil {
		return "", false
	}
	return dsn.PublicKey, true
}

// AddItem appends an item.
func (e *Envelope) AddItem(item *Item) {
	e.Items = append(e.Items, item)
}

// RetainItems keeps only the items for which keep returns true.
func (e *Envelope) RetainItems(keep func(*Item) bool) {
	kept := e.Items[:0]
	for _, item := range e.Items {
		if keep(item) {
			kept = append(kept, item)
		}
	}
	for i := len(kept); i < len(e.Items); i++ {
		e.Items[i] = nil
	}
	e.Items = kept
}

// TakeItemsByType removes and returns all items of the given type.
func (e *Envelope) TakeItemsByType(t ItemType) []*Item {
	var taken []*Item
	e.RetainItems(func(item *Item) bool {
		if item.Type() == t {
			taken = append(taken, item)
			return false
		}
		return true
	})
	return taken
}

// IsEmpty returns true if the envelope has no items.
func (e *Envelope) IsEmpty() bool {
	return len(e.Items) == 0
}

// Type returns the item type, or ItemTypeUnknown if the header is missing.
func (i *Item) Type() ItemType {
	if s, ok := i.Headers.StringField("type"); ok && s != "" {
		return ItemType(s)
	}
	return ItemTypeUnknown
}

// ContentType returns the "content_type" header.
func (i *Item) ContentType() string {
	s, _ := i.Headers.StringField("content_type")
	return s
}

// Filename returns the "filename" header.
func (i *Item) Filename() string {
	s, _ := i.Headers.StringField("filename")
	return s
}

// SetHeader sets an item header.
func (i *Item) SetHeader(name string, value Value) {
	if i.Headers == nil {
		i.Headers = Object{}
	}
	i.Headers[name] = value
}

// Quantity is the amount this item counts against quotas: bytes for attachments, one otherwise.
func (i *Item) Quantity() int {
	if c, ok := i.Type().DataCategory(); ok && c == basictypes.DataCategoryAttachment {
		return len(i.Payload)
	}
	return 1
}

// ParseEnvelope parses the envelope wire format: a JSON header line, then for each item a JSON
// header line followed by the payload. If an item header has a "length", the payload is exactly
// that many bytes followed by an optional newline; otherwise it runs to the next newline.
func ParseEnvelope(data []byte) (*Envelope, error) {
	headerLine, rest := splitLine(data)
	if len(bytes.TrimSpace(headerLine)) == 0 {
		return nil, EnvelopeError{Kind: EnvelopeMissingHeader}
	}
	headers, err := ParseObject(headerLine)
	if err != nil {
		return nil, EnvelopeError{Kind: EnvelopeInvalidHeader, Detail: err.Error()}
	}
	envelope := &Envelope{Headers: headers}

	for len(rest) > 0 {
		var line []byte
		line, rest = splitLine(rest)
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		itemHeaders, err := ParseObject(line)
		if err != nil {
			return nil, EnvelopeError{Kind: EnvelopeInvalidItemHeader, Detail: err.Error()}
		}
		item := &Item{Headers: itemHeaders}
		if length, ok := itemHeaders.IntField("length"); ok {
			if length < 0 || int64(len(rest)) < length {
				return nil, EnvelopeError{Kind: EnvelopeUnexpectedEOF}
			}
			item.Payload = rest[:length]
			rest = rest[length:]
			switch {
			case len(rest) == 0 || (len(rest) == 1 && rest[0] == '\r'):
				rest = nil
			case rest[0] == '\n':
				rest = rest[1:]
			case len(rest) > 1 && rest[0] == '\r' && rest[1] == '\n':
				rest = rest[2:]
			default:
				return nil, EnvelopeError{Kind: EnvelopeMissingNewline}
			}
		} else {
			item.Payload, rest = splitLine(rest)
		}
		envelope.Items = append(envelope.Items, item)
	}
	return envelope, nil
}

// splitLine returns the data up to the first newline (without a trailing carriage return) and
// the data after it.
func splitLine(data []byte) (line, rest []byte) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return data, nil
	}
	line, rest = data[:i], data[i+1:]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, rest
}

// Serialize writes the envelope in its wire format. Every item gets an explicit length.
func (e *Envelope) Serialize() []byte {
	var buf bytes.Buffer
	headers := e.Headers
	if headers == nil {
		headers = Object{}
	}
	buf.Write(marshalObject(headers))
	buf.WriteByte('\n')
	for _, item := range e.Items {
		itemHeaders := make(Object, len(item.Headers)+1)
		for k, v := range item.Headers {
			itemHeaders[k] = v
		}
		itemHeaders["length"] = int64(len(item.Payload))
		buf.Write(marshalObject(itemHeaders))
		buf.WriteByte('\n')
		buf.Write(item.Payload)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func marshalObject(o Object) []byte {
	w := jwriter.NewWriter()
	WriteValue(&w, o)
	return w.Bytes()
}

// EnvelopeFromEvent wraps a single JSON event, as posted to the store endpoint, into an envelope.
// Transactions are recognized by their "type" field.
func EnvelopeFromEvent(payload []byte) (*Envelope, error) {
	event, err := ParseObject(payload)
	if err != nil {
		return nil, EnvelopeError{Kind: EnvelopeInvalidItemHeader, Detail: err.Error()}
	}
	eventID, ok := EventID(""), false
	if s, isString := event.StringField("event_id"); isString {
		eventID, ok = ParseEventID(s)
	}
	if !ok {
		eventID = NewEventID()
	}
	itemType := ItemTypeEvent
	if t, _ := event.StringField("type"); strings.EqualFold(t, "transaction") {
		itemType = ItemTypeTransaction
	}
	envelope := NewEnvelope(eventID)
	item := NewItem(itemType, payload)
	item.SetHeader("content_type", "application/json")
	envelope.AddItem(item)
	return envelope, nil
}
