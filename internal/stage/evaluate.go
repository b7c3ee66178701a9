package stage

import (
	"github.com/vbonduro/listingwizard/internal/domain"
	"github.com/vbonduro/listingwizard/internal/schema"
	"github.com/vbonduro/listingwizard/internal/validate"
)

const (
	MsgCoverRequired  = "a cover photo is required"
	MsgRoomRequired   = "add at least one room"
	MsgPhotosRequired = "add at least one photo to this room"
)

type Status int

const (
	Pristine Status = iota
	Editing
	Satisfied
	Blocked
)

func (s Status) String() string {
	switch s {
	case Editing:
		return "editing"
	case Satisfied:
		return "satisfied"
	case Blocked:
		return "blocked"
	default:
		return "pristine"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Evaluate runs every validator of stage idx against the draft and returns
// the verdict of each field key of that stage, and whether the stage gate
// holds. fields is only read for the Attempted flag of room photo keys.
func Evaluate(sc *schema.Schema, idx int, d domain.Draft, fields map[domain.FieldKey]domain.FieldState) (map[domain.FieldKey]domain.Verdict, bool) {
	st := sc.Stages[idx]
	verdicts := make(map[domain.FieldKey]domain.Verdict)
	gate := true

	record := func(k domain.FieldKey, v domain.Verdict) {
		verdicts[k] = v
		if v.Status != domain.Valid {
			gate = false
		}
	}

	for _, f := range st.Fields {
		record(domain.Scalar(f.Name), validate.Field(f.Rule, d.Fields[f.Name], d.Fields))
	}

	// An empty collection never blocks; every existing entry must be valid.
	for _, c := range st.Collections {
		for i, e := range d.Collections[c.Name] {
			for _, f := range c.Fields {
				record(domain.Item(c.Name, i, f.Name), validate.Field(f.Rule, e[f.Name], e))
			}
		}
	}

	if st.Media != nil {
		evaluateMedia(st.Media, d, fields, record)
	}

	return verdicts, gate
}

func evaluateMedia(m *schema.Media, d domain.Draft, fields map[domain.FieldKey]domain.FieldState, record func(domain.FieldKey, domain.Verdict)) {
	switch {
	case d.Cover != nil:
		record(domain.Scalar(schema.CoverField), domain.ValidVerdict())
	case m.RequireCover:
		record(domain.Scalar(schema.CoverField), domain.InvalidVerdict(MsgCoverRequired))
	default:
		record(domain.Scalar(schema.CoverField), domain.AbsentVerdict())
	}

	if len(d.Rooms) == 0 {
		record(domain.Scalar(schema.RoomsField), domain.InvalidVerdict(MsgRoomRequired))
	} else {
		record(domain.Scalar(schema.RoomsField), domain.ValidVerdict())
	}

	for i, r := range d.Rooms {
		record(domain.Item(schema.RoomsCollection, i, schema.RoomNameField), validate.Field(m.RoomName.Rule, r.Name, nil))

		// A room without photos only blocks once an upload was attempted for
		// it.
		photosKey := domain.Item(schema.RoomsCollection, i, schema.RoomPhotosField)
		switch {
		case len(r.Photos) > 0:
			record(photosKey, domain.ValidVerdict())
		case fields[photosKey].Attempted:
			record(photosKey, domain.InvalidVerdict(MsgPhotosRequired))
		default:
			record(photosKey, domain.AbsentVerdict())
		}
	}
}

// Gate reports whether the wizard may advance past stage idx.
func Gate(sc *schema.Schema, idx int, s domain.State) bool {
	_, ok := Evaluate(sc, idx, s.Draft, s.Fields)
	return ok
}

// FirstBlocked returns the index of the first stage whose gate does not hold,
// or -1 when every stage is satisfied.
func FirstBlocked(sc *schema.Schema, s domain.State) int {
	for i := range sc.Stages {
		if !Gate(sc, i, s) {
			return i
		}
	}
	return -1
}

// StatusOf derives the state of stage idx from its touched flags and gate.
// Reduce evaluates every key it touches before returning, so Editing is only
// seen for a touched key whose verdict was never computed, as in a state
// assembled outside Reduce.
func StatusOf(sc *schema.Schema, idx int, s domain.State) Status {
	touched := false
	for k, fs := range s.Fields {
		if !fs.Touched || sc.StageOfKey(k) != idx {
			continue
		}
		touched = true
		if fs.Verdict.Status == domain.Unevaluated {
			return Editing
		}
	}
	if !touched {
		return Pristine
	}
	if Gate(sc, idx, s) {
		return Satisfied
	}
	return Blocked
}

// refresh stores the fresh verdicts of stage idx into s, keeping touched
// flags, and drops stale keys that no longer address a field.
func refresh(sc *schema.Schema, idx int, s *domain.State) {
	verdicts, _ := Evaluate(sc, idx, s.Draft, s.Fields)
	for k := range s.Fields {
		if sc.StageOfKey(k) != idx {
			continue
		}
		if _, ok := verdicts[k]; !ok {
			delete(s.Fields, k)
		}
	}
	for k, v := range verdicts {
		fs := s.Fields[k]
		fs.Verdict = v
		s.Fields[k] = fs
	}
}
