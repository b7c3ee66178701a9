// Package attachment acquires photo handles for a draft.
package attachment

import (
	"context"
	"io"

	"github.com/vbonduro/listingwizard/internal/domain"
)

// Spool keeps uploaded photo bytes for the lifetime of a wizard session and
// hands out attachment handles that read them back.
type Spool interface {
	Save(ctx context.Context, name, mimeType string, r io.Reader) (domain.Attachment, error)
	// Discard deletes the bytes behind one handle that never made it into
	// the draft.
	Discard(ctx context.Context, a domain.Attachment) error
	Purge(ctx context.Context) error
}
