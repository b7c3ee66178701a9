// Package quota enforces the shared photo budget across all rooms of a draft.
package quota

import (
	"errors"

	"github.com/vbonduro/listingwizard/internal/domain"
)

// DefaultCap is the maximum number of photos across all rooms.
const DefaultCap = 100

var ErrNoSuchRoom = errors.New("room not found")

// Result describes what happened to a batch of incoming photos. Duplicates
// were discarded before the quota was applied; Rejected counts the remaining
// photos that did not fit.
type Result struct {
	Accepted   []domain.Attachment
	Rejected   int
	Duplicates int
}

// Total counts photos across all rooms. It is recomputed on every call.
func Total(rooms []domain.Room) int {
	n := 0
	for _, r := range rooms {
		n += len(r.Photos)
	}
	return n
}

// Remaining is the number of photos that can still be added anywhere.
func Remaining(rooms []domain.Room, limit int) int {
	return max(0, limit-Total(rooms))
}

// Allocate decides which of incoming may be added to rooms[roomIndex].
// Photos equal by name and size to one already in the room, or to an earlier
// photo of the same batch, are dropped as duplicates. Of the rest, the first
// max(0, limit - total) are accepted in order.
func Allocate(rooms []domain.Room, roomIndex int, incoming []domain.Attachment, limit int) (Result, error) {
	if roomIndex < 0 || roomIndex >= len(rooms) {
		return Result{}, ErrNoSuchRoom
	}

	room := rooms[roomIndex]
	currentOther := Total(rooms) - len(room.Photos)
	acceptable := max(0, limit-currentOther-len(room.Photos))

	res := Result{Accepted: []domain.Attachment{}}
	seen := make([]domain.Attachment, 0, len(room.Photos)+len(incoming))
	seen = append(seen, room.Photos...)

	for _, a := range incoming {
		if containsSame(seen, a) {
			res.Duplicates++
			continue
		}
		seen = append(seen, a)
		if len(res.Accepted) < acceptable {
			res.Accepted = append(res.Accepted, a)
			continue
		}
		res.Rejected++
	}
	return res, nil
}

func containsSame(list []domain.Attachment, a domain.Attachment) bool {
	for _, b := range list {
		if b.SameAs(a) {
			return true
		}
	}
	return false
}
