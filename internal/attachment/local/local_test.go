package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/listingwizard/internal/domain"
)

func TestLocalSpoolSaveAndOpen(t *testing.T) {
	spool, err := NewLocalSpool(t.TempDir())
	require.NoError(t, err)

	imageData := []byte("fake jpeg data")
	a, err := spool.Save(context.Background(), "living-room.jpg", "image/jpeg", bytes.NewReader(imageData))
	require.NoError(t, err)

	assert.Equal(t, "living-room.jpg", a.Name)
	assert.Equal(t, int64(len(imageData)), a.Size)
	assert.Equal(t, "image/jpeg", a.MimeType)

	reader, err := a.Open()
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, imageData, data)
}

func TestLocalSpoolKeepsOnlyBaseName(t *testing.T) {
	spool, err := NewLocalSpool(t.TempDir())
	require.NoError(t, err)

	a, err := spool.Save(context.Background(), "../../etc/passwd", "image/png", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	assert.Equal(t, "passwd", a.Name)
}

func TestLocalSpoolSameNameDoesNotCollide(t *testing.T) {
	spool, err := NewLocalSpool(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first, err := spool.Save(ctx, "a.jpg", "image/jpeg", bytes.NewReader([]byte("one")))
	require.NoError(t, err)
	second, err := spool.Save(ctx, "a.jpg", "image/jpeg", bytes.NewReader([]byte("two")))
	require.NoError(t, err)

	for want, a := range map[string]domain.Attachment{"one": first, "two": second} {
		r, err := a.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		assert.Equal(t, want, string(data))
	}
}

func TestLocalSpoolPurge(t *testing.T) {
	spool, err := NewLocalSpool(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	a, err := spool.Save(ctx, "a.jpg", "image/jpeg", bytes.NewReader([]byte("data")))
	require.NoError(t, err)

	require.NoError(t, spool.Purge(ctx))

	_, err = a.Open()
	assert.True(t, errors.Is(err, domain.ErrAttachmentMissing))
}

func TestLocalSpoolDiscard(t *testing.T) {
	dir := t.TempDir()
	spool, err := NewLocalSpool(dir)
	require.NoError(t, err)
	ctx := context.Background()

	kept, err := spool.Save(ctx, "kept.jpg", "image/jpeg", bytes.NewReader([]byte("kept")))
	require.NoError(t, err)
	dropped, err := spool.Save(ctx, "dropped.jpg", "image/jpeg", bytes.NewReader([]byte("dropped")))
	require.NoError(t, err)
	assert.NotEqual(t, kept.Ref, dropped.Ref)

	require.NoError(t, spool.Discard(ctx, dropped))
	require.NoError(t, spool.Discard(ctx, dropped), "discarding twice is not an error")
	require.NoError(t, spool.Discard(ctx, domain.Attachment{Name: "never-spooled.jpg"}))

	_, err = dropped.Open()
	assert.True(t, errors.Is(err, domain.ErrAttachmentMissing))
	r, err := kept.Open()
	require.NoError(t, err)
	require.NoError(t, r.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalSpoolDiscardRejectsTraversal(t *testing.T) {
	spool, err := NewLocalSpool(t.TempDir())
	require.NoError(t, err)

	err = spool.Discard(context.Background(), domain.Attachment{Ref: "../../etc/passwd"})
	assert.Error(t, err)
}

func TestLocalSpoolPathTraversal(t *testing.T) {
	spool, err := NewLocalSpool(t.TempDir())
	require.NoError(t, err)

	_, err = spool.open("../../etc/passwd")
	assert.Error(t, err)
}

func TestMimeTypeToExt(t *testing.T) {
	assert.Equal(t, ".png", mimeTypeToExt("image/png"))
	assert.Equal(t, ".webp", mimeTypeToExt("image/webp"))
	assert.Equal(t, ".jpg", mimeTypeToExt("application/octet-stream"))
}
