package schema

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vbonduro/listingwizard/internal/domain"
	"github.com/vbonduro/listingwizard/internal/validate"
)

// Keys that are not backed by a scalar field of the media stage.
const (
	RoomsCollection = "rooms"
	RoomNameField   = "name"
	RoomPhotosField = "photos"
	CoverField      = "cover"
	RoomsField      = "rooms"
)

//go:embed schema.yaml
var defaultSchema []byte

type Field struct {
	Name          string `yaml:"name" json:"name"`
	Label         string `yaml:"label" json:"label"`
	validate.Rule `yaml:",inline"`
}

type Collection struct {
	Name   string  `yaml:"name" json:"name"`
	Label  string  `yaml:"label" json:"label"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// Media configures the attachment rules of a stage.
type Media struct {
	RequireCover bool  `yaml:"requireCover" json:"requireCover"`
	MaxRooms     int   `yaml:"maxRooms" json:"maxRooms"`
	RoomName     Field `yaml:"roomName" json:"roomName"`
}

type Stage struct {
	Name        string       `yaml:"name" json:"name"`
	Label       string       `yaml:"label" json:"label"`
	Fields      []Field      `yaml:"fields" json:"fields"`
	Collections []Collection `yaml:"collections,omitempty" json:"collections,omitempty"`
	Media       *Media       `yaml:"media,omitempty" json:"media,omitempty"`
}

// Schema is the ordered list of wizard stages and the rules of their fields.
type Schema struct {
	Stages []Stage `yaml:"stages" json:"stages"`

	fieldStage      map[string]int
	collectionStage map[string]int
	mediaStage      int
}

// Default returns the built-in listing schema.
func Default() (*Schema, error) {
	return Parse(defaultSchema)
}

// MustDefault is Default for callers that cannot recover from a broken
// embedded schema.
func MustDefault() *Schema {
	s, err := Default()
	if err != nil {
		panic(err)
	}
	return s
}

func Parse(data []byte) (*Schema, error) {
	s := &Schema{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if err := s.index(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schema) index() error {
	if len(s.Stages) == 0 {
		return fmt.Errorf("schema has no stages")
	}
	s.fieldStage = make(map[string]int)
	s.collectionStage = make(map[string]int)
	s.mediaStage = -1

	for i := range s.Stages {
		st := &s.Stages[i]
		for j := range st.Fields {
			f := &st.Fields[j]
			if _, dup := s.fieldStage[f.Name]; dup {
				return fmt.Errorf("duplicate field %q", f.Name)
			}
			if err := f.Compile(); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
			s.fieldStage[f.Name] = i
		}
		for j := range st.Collections {
			c := &st.Collections[j]
			if _, dup := s.collectionStage[c.Name]; dup || c.Name == RoomsCollection {
				return fmt.Errorf("duplicate collection %q", c.Name)
			}
			if len(c.Fields) == 0 || len(c.Fields) > 2 {
				return fmt.Errorf("collection %q must have one or two fields", c.Name)
			}
			for k := range c.Fields {
				if err := c.Fields[k].Compile(); err != nil {
					return fmt.Errorf("collection %q field %q: %w", c.Name, c.Fields[k].Name, err)
				}
			}
			s.collectionStage[c.Name] = i
		}
		if st.Media != nil {
			if s.mediaStage >= 0 {
				return fmt.Errorf("only one media stage is supported")
			}
			if err := st.Media.RoomName.Compile(); err != nil {
				return fmt.Errorf("room name: %w", err)
			}
			s.mediaStage = i
		}
	}
	return nil
}

func (s *Schema) Len() int { return len(s.Stages) }

// MediaStage returns the index of the stage owning rooms and the cover, or -1.
func (s *Schema) MediaStage() int { return s.mediaStage }

// FieldStage returns the stage index of a top-level field.
func (s *Schema) FieldStage(name string) (int, bool) {
	i, ok := s.fieldStage[name]
	return i, ok
}

func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.fieldStage[name]
	if !ok {
		return Field{}, false
	}
	for _, f := range s.Stages[i].Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (s *Schema) Collection(name string) (Collection, bool) {
	i, ok := s.collectionStage[name]
	if !ok {
		return Collection{}, false
	}
	for _, c := range s.Stages[i].Collections {
		if c.Name == name {
			return c, true
		}
	}
	return Collection{}, false
}

// StageOfKey returns the stage a field key belongs to, or -1.
func (s *Schema) StageOfKey(k domain.FieldKey) int {
	if k.Kind == domain.KindItem {
		if k.Collection == RoomsCollection {
			return s.mediaStage
		}
		if i, ok := s.collectionStage[k.Collection]; ok {
			return i
		}
		return -1
	}
	if k.Field == CoverField || k.Field == RoomsField {
		return s.mediaStage
	}
	if i, ok := s.fieldStage[k.Field]; ok {
		return i
	}
	return -1
}

// NewEntry returns an empty entry holding every field of the collection.
func (s *Schema) NewEntry(collection string) domain.Entry {
	c, _ := s.Collection(collection)
	e := make(domain.Entry, len(c.Fields))
	for _, f := range c.Fields {
		e[f.Name] = ""
	}
	return e
}

// NewDraft returns an empty draft holding every field and collection of the
// schema.
func (s *Schema) NewDraft() domain.Draft {
	d := domain.Draft{
		Fields:      make(map[string]string, len(s.fieldStage)),
		Collections: make(map[string][]domain.Entry, len(s.collectionStage)),
		Rooms:       []domain.Room{},
	}
	for _, st := range s.Stages {
		for _, f := range st.Fields {
			d.Fields[f.Name] = ""
		}
		for _, c := range st.Collections {
			d.Collections[c.Name] = []domain.Entry{}
		}
	}
	return d
}

// MaxRooms returns the room cap of the media stage, 0 meaning unlimited.
func (s *Schema) MaxRooms() int {
	if s.mediaStage < 0 {
		return 0
	}
	return s.Stages[s.mediaStage].Media.MaxRooms
}
