package wizard

import (
	"github.com/vbonduro/listingwizard/internal/domain"
	"github.com/vbonduro/listingwizard/internal/schema"
)

// Summary is the read-only view of a confirmed draft shown before
// submission.
type Summary struct {
	Stages []StageSummary `json:"stages"`
	Rooms  []RoomSummary  `json:"rooms"`
	Cover  string         `json:"cover,omitempty"`
	Photos int            `json:"photos"`
}

type StageSummary struct {
	Name        string                    `json:"name"`
	Label       string                    `json:"label"`
	Fields      []FieldSummary            `json:"fields"`
	Collections map[string][]domain.Entry `json:"collections,omitempty"`
}

type FieldSummary struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Value string `json:"value"`
}

type RoomSummary struct {
	Name   string   `json:"name"`
	Photos []string `json:"photos"`
}

func summarize(sc *schema.Schema, d domain.Draft) Summary {
	s := Summary{
		Stages: make([]StageSummary, 0, sc.Len()),
		Rooms:  make([]RoomSummary, 0, len(d.Rooms)),
		Photos: d.PhotoCount(),
	}
	for _, st := range sc.Stages {
		ss := StageSummary{Name: st.Name, Label: st.Label, Fields: make([]FieldSummary, 0, len(st.Fields))}
		for _, f := range st.Fields {
			ss.Fields = append(ss.Fields, FieldSummary{Name: f.Name, Label: f.Label, Value: d.Fields[f.Name]})
		}
		if len(st.Collections) > 0 {
			ss.Collections = make(map[string][]domain.Entry, len(st.Collections))
			for _, c := range st.Collections {
				entries := make([]domain.Entry, len(d.Collections[c.Name]))
				for i, e := range d.Collections[c.Name] {
					entries[i] = e.Clone()
				}
				ss.Collections[c.Name] = entries
			}
		}
		s.Stages = append(s.Stages, ss)
	}
	for _, r := range d.Rooms {
		names := make([]string, len(r.Photos))
		for i, p := range r.Photos {
			names[i] = p.Name
		}
		s.Rooms = append(s.Rooms, RoomSummary{Name: r.Name, Photos: names})
	}
	if d.Cover != nil {
		s.Cover = d.Cover.Name
	}
	return s
}
