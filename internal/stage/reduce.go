// Package stage implements the per-stage controllers of the wizard as pure
// reducers over domain.State.
package stage

import (
	"errors"
	"fmt"

	"github.com/vbonduro/listingwizard/internal/collection"
	"github.com/vbonduro/listingwizard/internal/domain"
	"github.com/vbonduro/listingwizard/internal/quota"
	"github.com/vbonduro/listingwizard/internal/schema"
)

var (
	ErrUnknownField      = errors.New("unknown field")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrRoomLimit         = errors.New("room limit reached")
	ErrNoMediaStage      = errors.New("schema has no media stage")
)

// Event is a single user edit. apply mutates the state it is given, which
// Reduce guarantees to be a private copy.
type Event interface {
	apply(sc *schema.Schema, s *domain.State) error
}

// Reduce returns the state after ev. The input state is never modified; on
// error it is returned unchanged.
func Reduce(sc *schema.Schema, s domain.State, ev Event) (domain.State, error) {
	next := s.Clone()
	if err := ev.apply(sc, &next); err != nil {
		return s, err
	}
	return next, nil
}

// Initial returns the state of a fresh wizard over d.
func Initial(d domain.Draft) domain.State {
	return domain.State{Draft: d, Fields: make(map[domain.FieldKey]domain.FieldState)}
}

func touch(s *domain.State, k domain.FieldKey) {
	fs := s.Fields[k]
	fs.Touched = true
	s.Fields[k] = fs
}

type SetField struct {
	Field string
	Value string
}

func (e SetField) apply(sc *schema.Schema, s *domain.State) error {
	idx, ok := sc.FieldStage(e.Field)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, e.Field)
	}
	s.Draft.Fields[e.Field] = e.Value
	touch(s, domain.Scalar(e.Field))
	refresh(sc, idx, s)
	return nil
}

// AppendEntry adds an empty entry to a collection. Its fields are touched at
// once so that required fields of the new row report errors immediately.
type AppendEntry struct {
	Collection string
}

func (e AppendEntry) apply(sc *schema.Schema, s *domain.State) error {
	c, ok := sc.Collection(e.Collection)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, e.Collection)
	}
	entries := collection.Append(s.Draft.Collections[c.Name], sc.NewEntry(c.Name))
	s.Draft.Collections[c.Name] = entries
	for _, f := range c.Fields {
		touch(s, domain.Item(c.Name, len(entries)-1, f.Name))
	}
	refresh(sc, sc.StageOfKey(domain.Item(c.Name, 0, "")), s)
	return nil
}

type UpdateEntry struct {
	Collection string
	Index      int
	Field      string
	Value      string
}

func (e UpdateEntry) apply(sc *schema.Schema, s *domain.State) error {
	c, ok := sc.Collection(e.Collection)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, e.Collection)
	}
	if !hasField(c.Fields, e.Field) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, c.Name, e.Field)
	}
	entries, err := collection.UpdateAt(s.Draft.Collections[c.Name], e.Index, func(entry domain.Entry) domain.Entry {
		entry = entry.Clone()
		entry[e.Field] = e.Value
		return entry
	})
	if err != nil {
		return err
	}
	s.Draft.Collections[c.Name] = entries
	touch(s, domain.Item(c.Name, e.Index, e.Field))
	refresh(sc, sc.StageOfKey(domain.Item(c.Name, e.Index, e.Field)), s)
	return nil
}

type RemoveEntry struct {
	Collection string
	Index      int
}

func (e RemoveEntry) apply(sc *schema.Schema, s *domain.State) error {
	c, ok := sc.Collection(e.Collection)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, e.Collection)
	}
	entries, err := collection.RemoveAt(s.Draft.Collections[c.Name], e.Index)
	if err != nil {
		return err
	}
	s.Draft.Collections[c.Name] = entries
	s.Fields = collection.Reindex(s.Fields, c.Name, e.Index)
	refresh(sc, sc.StageOfKey(domain.Item(c.Name, 0, "")), s)
	return nil
}

type AddRoom struct {
	Name string
}

func (e AddRoom) apply(sc *schema.Schema, s *domain.State) error {
	idx := sc.MediaStage()
	if idx < 0 {
		return ErrNoMediaStage
	}
	if limit := sc.MaxRooms(); limit > 0 && len(s.Draft.Rooms) >= limit {
		return ErrRoomLimit
	}
	s.Draft.Rooms = collection.Append(s.Draft.Rooms, domain.Room{Name: e.Name, Photos: []domain.Attachment{}})
	touch(s, domain.Item(schema.RoomsCollection, len(s.Draft.Rooms)-1, schema.RoomNameField))
	touch(s, domain.Scalar(schema.RoomsField))
	refresh(sc, idx, s)
	return nil
}

type RenameRoom struct {
	Index int
	Name  string
}

func (e RenameRoom) apply(sc *schema.Schema, s *domain.State) error {
	rooms, err := collection.UpdateAt(s.Draft.Rooms, e.Index, func(r domain.Room) domain.Room {
		r = r.Clone()
		r.Name = e.Name
		return r
	})
	if err != nil {
		return err
	}
	s.Draft.Rooms = rooms
	touch(s, domain.Item(schema.RoomsCollection, e.Index, schema.RoomNameField))
	refresh(sc, sc.MediaStage(), s)
	return nil
}

type RemoveRoom struct {
	Index int
}

func (e RemoveRoom) apply(sc *schema.Schema, s *domain.State) error {
	rooms, err := collection.RemoveAt(s.Draft.Rooms, e.Index)
	if err != nil {
		return err
	}
	s.Draft.Rooms = rooms
	s.Fields = collection.Reindex(s.Fields, schema.RoomsCollection, e.Index)
	touch(s, domain.Scalar(schema.RoomsField))
	refresh(sc, sc.MediaStage(), s)
	return nil
}

// AddPhotos appends photos to a room through the quota aggregator. The
// upload attempt is recorded even when nothing is accepted.
type AddPhotos struct {
	Room   int
	Photos []domain.Attachment
	Limit  int
}

func (e AddPhotos) apply(sc *schema.Schema, s *domain.State) error {
	res, err := quota.Allocate(s.Draft.Rooms, e.Room, e.Photos, e.Limit)
	if err != nil {
		return err
	}
	rooms, err := collection.UpdateAt(s.Draft.Rooms, e.Room, func(r domain.Room) domain.Room {
		r = r.Clone()
		r.Photos = append(r.Photos, res.Accepted...)
		return r
	})
	if err != nil {
		return err
	}
	s.Draft.Rooms = rooms

	k := domain.Item(schema.RoomsCollection, e.Room, schema.RoomPhotosField)
	fs := s.Fields[k]
	fs.Touched = true
	fs.Attempted = true
	s.Fields[k] = fs
	refresh(sc, sc.MediaStage(), s)
	return nil
}

type RemovePhoto struct {
	Room  int
	Index int
}

func (e RemovePhoto) apply(sc *schema.Schema, s *domain.State) error {
	var removeErr error
	rooms, err := collection.UpdateAt(s.Draft.Rooms, e.Room, func(r domain.Room) domain.Room {
		photos, err := collection.RemoveAt(r.Photos, e.Index)
		if err != nil {
			removeErr = err
			return r
		}
		return domain.Room{Name: r.Name, Photos: photos}
	})
	if err != nil {
		return err
	}
	if removeErr != nil {
		return removeErr
	}
	s.Draft.Rooms = rooms
	refresh(sc, sc.MediaStage(), s)
	return nil
}

type SetCover struct {
	Cover domain.Attachment
}

func (e SetCover) apply(sc *schema.Schema, s *domain.State) error {
	if sc.MediaStage() < 0 {
		return ErrNoMediaStage
	}
	cover := e.Cover
	s.Draft.Cover = &cover
	touch(s, domain.Scalar(schema.CoverField))
	refresh(sc, sc.MediaStage(), s)
	return nil
}

type ClearCover struct{}

func (ClearCover) apply(sc *schema.Schema, s *domain.State) error {
	if sc.MediaStage() < 0 {
		return ErrNoMediaStage
	}
	s.Draft.Cover = nil
	touch(s, domain.Scalar(schema.CoverField))
	refresh(sc, sc.MediaStage(), s)
	return nil
}

// TouchStage marks every field of a stage as touched and recomputes it, so
// that all outstanding errors become visible. Photo upload attempts are not
// implied.
type TouchStage struct {
	Stage int
}

func (e TouchStage) apply(sc *schema.Schema, s *domain.State) error {
	if e.Stage < 0 || e.Stage >= sc.Len() {
		return fmt.Errorf("stage %d out of range", e.Stage)
	}
	verdicts, _ := Evaluate(sc, e.Stage, s.Draft, s.Fields)
	for k := range verdicts {
		touch(s, k)
	}
	refresh(sc, e.Stage, s)
	return nil
}

func hasField(fields []schema.Field, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
