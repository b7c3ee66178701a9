// Package submit flattens a draft into one multipart request and hands it to
// the remote listing endpoint.
package submit

import (
	"encoding/json"
	"fmt"

	"github.com/vbonduro/listingwizard/internal/domain"
	"github.com/vbonduro/listingwizard/internal/schema"
)

// Part is one entry of the payload: a text value, or a file when File is set.
type Part struct {
	Name  string
	Value string
	File  *domain.Attachment
}

// Payload is the ordered list of entries sent in a single request.
type Payload struct {
	Parts []Part
}

// Fields returns the text entries by name.
func (p Payload) Fields() map[string]string {
	out := make(map[string]string)
	for _, part := range p.Parts {
		if part.File == nil {
			out[part.Name] = part.Value
		}
	}
	return out
}

// Files returns the file entries in payload order.
func (p Payload) Files() []Part {
	var out []Part
	for _, part := range p.Parts {
		if part.File != nil {
			out = append(out, part)
		}
	}
	return out
}

// PhotoPartName is the entry name of photo p of room r.
func PhotoPartName(r, p int) string {
	return fmt.Sprintf("room_%d_photo_%d", r, p)
}

// Assemble flattens d in schema order: scalar fields one entry each, each
// collection as a JSON array, the room names as a JSON array, then the room
// photos and the cover as file entries.
func Assemble(sc *schema.Schema, d domain.Draft) (Payload, error) {
	var p Payload
	for _, st := range sc.Stages {
		for _, f := range st.Fields {
			p.Parts = append(p.Parts, Part{Name: f.Name, Value: d.Fields[f.Name]})
		}
		for _, c := range st.Collections {
			entries := d.Collections[c.Name]
			if entries == nil {
				entries = []domain.Entry{}
			}
			raw, err := json.Marshal(entries)
			if err != nil {
				return Payload{}, fmt.Errorf("failed to encode collection %s: %w", c.Name, err)
			}
			p.Parts = append(p.Parts, Part{Name: c.Name, Value: string(raw)})
		}
	}

	names := make([]string, len(d.Rooms))
	for i, r := range d.Rooms {
		names[i] = r.Name
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to encode rooms: %w", err)
	}
	p.Parts = append(p.Parts, Part{Name: schema.RoomsField, Value: string(raw)})

	for r, room := range d.Rooms {
		for i := range room.Photos {
			photo := room.Photos[i]
			p.Parts = append(p.Parts, Part{Name: PhotoPartName(r, i), File: &photo})
		}
	}
	if d.Cover != nil {
		cover := *d.Cover
		p.Parts = append(p.Parts, Part{Name: schema.CoverField, File: &cover})
	}
	return p, nil
}
