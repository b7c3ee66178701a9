package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldKeyString(t *testing.T) {
	assert.Equal(t, "title", Scalar("title").String())
	assert.Equal(t, "features[2].name", Item("features", 2, "name").String())
}

func TestFieldKeyAsJSONKey(t *testing.T) {
	raw, err := json.Marshal(map[FieldKey]FieldState{
		Item("rooms", 0, "photos"): {Touched: true, Attempted: true, Verdict: InvalidVerdict("add at least one photo")},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"rooms[0].photos":{"touched":true,"attempted":true,"verdict":{"status":"invalid","message":"add at least one photo"}}}`, string(raw))
}

func TestDraftCloneDoesNotAlias(t *testing.T) {
	cover := NewAttachment("cover.jpg", 10, "image/jpeg", nil)
	d := Draft{
		Fields:      map[string]string{"title": "Villa"},
		Collections: map[string][]Entry{"features": {{"name": "Pool"}}},
		Rooms:       []Room{{Name: "Kitchen", Photos: []Attachment{NewAttachment("a.jpg", 1, "image/jpeg", nil)}}},
		Cover:       &cover,
	}

	c := d.Clone()
	c.Fields["title"] = "Changed"
	c.Collections["features"][0]["name"] = "Sauna"
	c.Rooms[0].Photos[0].Name = "b.jpg"
	c.Cover.Name = "other.jpg"

	assert.Equal(t, "Villa", d.Fields["title"])
	assert.Equal(t, "Pool", d.Collections["features"][0]["name"])
	assert.Equal(t, "a.jpg", d.Rooms[0].Photos[0].Name)
	assert.Equal(t, "cover.jpg", d.Cover.Name)
	assert.Equal(t, 1, c.PhotoCount())
}

func TestAttachmentWithoutDataCannotOpen(t *testing.T) {
	_, err := Attachment{Name: "restored.jpg", Size: 10}.Open()
	assert.True(t, errors.Is(err, ErrAttachmentMissing))
}

func TestAttachmentSameAs(t *testing.T) {
	a := NewAttachment("a.jpg", 10, "image/jpeg", nil)
	assert.True(t, a.SameAs(NewAttachment("a.jpg", 10, "image/png", nil)))
	assert.False(t, a.SameAs(NewAttachment("a.jpg", 11, "image/jpeg", nil)))
	assert.False(t, a.SameAs(NewAttachment("b.jpg", 10, "image/jpeg", nil)))
}
