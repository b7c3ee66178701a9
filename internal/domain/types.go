package domain

import (
	"errors"
	"fmt"
	"io"
)

// ErrAttachmentMissing is returned when opening an attachment whose binary
// data is no longer available, e.g. after a draft was restored from storage.
var ErrAttachmentMissing = errors.New("attachment data not available")

type KeyKind int

const (
	KindScalar KeyKind = iota
	KindItem
)

// FieldKey addresses one validatable field: either a top-level field of a
// stage or a field of the entry at Index within Collection.
type FieldKey struct {
	Kind       KeyKind
	Collection string
	Index      int
	Field      string
}

func Scalar(field string) FieldKey {
	return FieldKey{Kind: KindScalar, Field: field}
}

func Item(collection string, index int, field string) FieldKey {
	return FieldKey{Kind: KindItem, Collection: collection, Index: index, Field: field}
}

func (k FieldKey) String() string {
	if k.Kind == KindItem {
		return fmt.Sprintf("%s[%d].%s", k.Collection, k.Index, k.Field)
	}
	return k.Field
}

// MarshalText lets FieldKey be used as a JSON object key.
func (k FieldKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type Status int

const (
	Unevaluated Status = iota
	Invalid
	Valid
)

func (s Status) String() string {
	switch s {
	case Invalid:
		return "invalid"
	case Valid:
		return "valid"
	default:
		return "unevaluated"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Verdict is the outcome of validating one field. Absent marks a valid field
// that is optional and empty.
type Verdict struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Absent  bool   `json:"absent,omitempty"`
}

func ValidVerdict() Verdict { return Verdict{Status: Valid} }

func AbsentVerdict() Verdict { return Verdict{Status: Valid, Absent: true} }

func InvalidVerdict(msg string) Verdict { return Verdict{Status: Invalid, Message: msg} }

// FieldState is the per-field bookkeeping held next to the draft. Touched and
// Attempted are session-local and never persisted.
type FieldState struct {
	Touched   bool    `json:"touched"`
	Attempted bool    `json:"attempted,omitempty"`
	Verdict   Verdict `json:"verdict"`
}

// Attachment is an in-memory handle to binary image data.
type Attachment struct {
	Name     string
	Size     int64
	MimeType string
	// Ref names the stored bytes for the spool that issued the handle.
	Ref  string
	open func() (io.ReadCloser, error)
}

func NewAttachment(name string, size int64, mimeType string, open func() (io.ReadCloser, error)) Attachment {
	return Attachment{Name: name, Size: size, MimeType: mimeType, open: open}
}

func (a Attachment) Open() (io.ReadCloser, error) {
	if a.open == nil {
		return nil, ErrAttachmentMissing
	}
	return a.open()
}

// SameAs reports whether two attachments are treated as the same file.
// Identity is name plus byte size; content is not hashed.
func (a Attachment) SameAs(b Attachment) bool {
	return a.Name == b.Name && a.Size == b.Size
}

// Entry is one row of a user-extensible collection, keyed by field name.
type Entry map[string]string

func (e Entry) Clone() Entry {
	out := make(Entry, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

type Room struct {
	Name   string
	Photos []Attachment
}

func (r Room) Clone() Room {
	photos := make([]Attachment, len(r.Photos))
	copy(photos, r.Photos)
	return Room{Name: r.Name, Photos: photos}
}

// Draft is the listing being assembled. Every schema field is present in
// Fields and every schema collection in Collections, even when empty.
type Draft struct {
	Fields      map[string]string
	Collections map[string][]Entry
	Rooms       []Room
	Cover       *Attachment
}

func (d Draft) Clone() Draft {
	out := Draft{
		Fields:      make(map[string]string, len(d.Fields)),
		Collections: make(map[string][]Entry, len(d.Collections)),
		Rooms:       make([]Room, len(d.Rooms)),
	}
	for k, v := range d.Fields {
		out.Fields[k] = v
	}
	for name, entries := range d.Collections {
		cloned := make([]Entry, len(entries))
		for i, e := range entries {
			cloned[i] = e.Clone()
		}
		out.Collections[name] = cloned
	}
	for i, r := range d.Rooms {
		out.Rooms[i] = r.Clone()
	}
	if d.Cover != nil {
		cover := *d.Cover
		out.Cover = &cover
	}
	return out
}

// PhotoCount is the number of photos across all rooms.
func (d Draft) PhotoCount() int {
	n := 0
	for _, r := range d.Rooms {
		n += len(r.Photos)
	}
	return n
}

// State is the aggregate owned by the wizard: the draft, its per-field
// validation and touched state, and the active stage.
type State struct {
	Draft  Draft
	Fields map[FieldKey]FieldState
	Active int
}

func (s State) Clone() State {
	fields := make(map[FieldKey]FieldState, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	return State{Draft: s.Draft.Clone(), Fields: fields, Active: s.Active}
}
