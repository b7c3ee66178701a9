package persist

import (
	"encoding/json"
	"fmt"

	"github.com/vbonduro/listingwizard/internal/domain"
	"github.com/vbonduro/listingwizard/internal/schema"
)

// SnapshotVersion is written into every stored draft.
const SnapshotVersion = 1

// Snapshot is the binary-free projection of a draft that goes to durable
// storage. Cover is always null and every room's photo list is empty.
type Snapshot struct {
	Version     int                            `json:"version" yaml:"version"`
	Fields      map[string]string              `json:"fields" yaml:"fields"`
	Collections map[string][]map[string]string `json:"collections" yaml:"collections"`
	Rooms       []RoomSnapshot                 `json:"rooms" yaml:"rooms"`
	Cover       *struct{}                      `json:"cover" yaml:"cover"`
}

type RoomSnapshot struct {
	Name   string     `json:"name" yaml:"name"`
	Photos []struct{} `json:"photos" yaml:"photos"`
}

// Project strips attachments from d.
func Project(d domain.Draft) Snapshot {
	snap := Snapshot{
		Version:     SnapshotVersion,
		Fields:      make(map[string]string, len(d.Fields)),
		Collections: make(map[string][]map[string]string, len(d.Collections)),
		Rooms:       make([]RoomSnapshot, 0, len(d.Rooms)),
	}
	for k, v := range d.Fields {
		snap.Fields[k] = v
	}
	for name, entries := range d.Collections {
		rows := make([]map[string]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, map[string]string(e.Clone()))
		}
		snap.Collections[name] = rows
	}
	for _, r := range d.Rooms {
		snap.Rooms = append(snap.Rooms, RoomSnapshot{Name: r.Name, Photos: []struct{}{}})
	}
	return snap
}

func Marshal(d domain.Draft) (string, error) {
	data, err := json.Marshal(Project(d))
	if err != nil {
		return "", fmt.Errorf("failed to encode draft: %w", err)
	}
	return string(data), nil
}

// storedSnapshot mirrors Snapshot with every value left raw, so one value of
// the wrong type only loses that value.
type storedSnapshot struct {
	Fields      json.RawMessage `json:"fields"`
	Collections json.RawMessage `json:"collections"`
	Rooms       json.RawMessage `json:"rooms"`
}

// Unmarshal decodes a stored draft and merges it into a fresh draft of sc.
// Fields and collections unknown to sc are dropped, missing ones keep their
// empty defaults, and attachments are always empty. Values that are not
// strings are treated as missing. Only a payload that is not a JSON object
// is an error.
func Unmarshal(sc *schema.Schema, raw string) (domain.Draft, error) {
	var stored storedSnapshot
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return sc.NewDraft(), fmt.Errorf("failed to decode draft: %w", err)
	}

	snap := Snapshot{
		Fields:      stringMap(stored.Fields),
		Collections: make(map[string][]map[string]string),
	}
	var collections map[string]json.RawMessage
	if json.Unmarshal(stored.Collections, &collections) == nil {
		for name, rawRows := range collections {
			var rows []json.RawMessage
			if json.Unmarshal(rawRows, &rows) != nil {
				continue
			}
			entries := make([]map[string]string, 0, len(rows))
			for _, row := range rows {
				entries = append(entries, stringMap(row))
			}
			snap.Collections[name] = entries
		}
	}
	var rooms []json.RawMessage
	if json.Unmarshal(stored.Rooms, &rooms) == nil {
		for _, r := range rooms {
			var room struct {
				Name json.RawMessage `json:"name"`
			}
			if json.Unmarshal(r, &room) != nil {
				continue
			}
			var name string
			_ = json.Unmarshal(room.Name, &name)
			snap.Rooms = append(snap.Rooms, RoomSnapshot{Name: name})
		}
	}
	return Merge(sc, snap), nil
}

// stringMap decodes a JSON object and keeps the members whose value is a
// string. Anything else yields an empty map.
func stringMap(raw json.RawMessage) map[string]string {
	out := make(map[string]string)
	var members map[string]json.RawMessage
	if json.Unmarshal(raw, &members) != nil {
		return out
	}
	for k, v := range members {
		var s string
		if json.Unmarshal(v, &s) == nil {
			out[k] = s
		}
	}
	return out
}

func Merge(sc *schema.Schema, snap Snapshot) domain.Draft {
	d := sc.NewDraft()

	for name := range d.Fields {
		if v, ok := snap.Fields[name]; ok {
			d.Fields[name] = v
		}
	}

	for name := range d.Collections {
		rows := snap.Collections[name]
		entries := make([]domain.Entry, 0, len(rows))
		for _, row := range rows {
			e := sc.NewEntry(name)
			for field := range e {
				if v, ok := row[field]; ok {
					e[field] = v
				}
			}
			entries = append(entries, e)
		}
		d.Collections[name] = entries
	}

	if sc.MediaStage() >= 0 {
		rooms := snap.Rooms
		if limit := sc.MaxRooms(); limit > 0 && len(rooms) > limit {
			rooms = rooms[:limit]
		}
		for _, r := range rooms {
			d.Rooms = append(d.Rooms, domain.Room{Name: r.Name, Photos: []domain.Attachment{}})
		}
	}
	return d
}

// Strip returns d as it would look after a save and reload.
func Strip(d domain.Draft) domain.Draft {
	out := d.Clone()
	out.Cover = nil
	for i := range out.Rooms {
		out.Rooms[i].Photos = []domain.Attachment{}
	}
	return out
}
