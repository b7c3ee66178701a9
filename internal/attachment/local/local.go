package local

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vbonduro/listingwizard/internal/domain"
)

// LocalSpool stores uploaded photos as files below basePath.
type LocalSpool struct {
	basePath string
	counter  atomic.Uint64
}

func NewLocalSpool(basePath string) (*LocalSpool, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	return &LocalSpool{basePath: basePath}, nil
}

// Save copies r to a new file and returns a handle that reopens it. The
// handle keeps the caller's file name; the file on disk gets a unique name.
func (s *LocalSpool) Save(ctx context.Context, name, mimeType string, r io.Reader) (domain.Attachment, error) {
	filename := fmt.Sprintf("photo_%d_%d%s", time.Now().UnixNano(), s.counter.Add(1), mimeTypeToExt(mimeType))
	filePath := filepath.Join(s.basePath, filename)

	f, err := os.Create(filePath)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(f, r)
	if err != nil {
		if cerr := f.Close(); cerr != nil {
			slog.Error("failed to close file after write error", "error", cerr)
		}
		if rerr := os.Remove(filePath); rerr != nil {
			slog.Error("failed to remove file after write error", "error", rerr)
		}
		return domain.Attachment{}, fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		if rerr := os.Remove(filePath); rerr != nil {
			slog.Error("failed to remove file after close error", "error", rerr)
		}
		return domain.Attachment{}, fmt.Errorf("failed to close file: %w", err)
	}

	open := func() (io.ReadCloser, error) { return s.open(filename) }
	a := domain.NewAttachment(filepath.Base(name), size, mimeType, open)
	a.Ref = filename
	return a, nil
}

func (s *LocalSpool) open(storageKey string) (io.ReadCloser, error) {
	filePath, err := s.safeJoin(storageKey)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrAttachmentMissing
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Discard deletes the file behind a. A handle without a reference, or one
// already discarded, is ignored.
func (s *LocalSpool) Discard(ctx context.Context, a domain.Attachment) error {
	if a.Ref == "" {
		return nil
	}
	filePath, err := s.safeJoin(a.Ref)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Purge deletes every spooled file. Handles issued earlier stop working.
func (s *LocalSpool) Purge(ctx context.Context) error {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return fmt.Errorf("failed to read spool directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.basePath, e.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete file: %w", err)
		}
	}
	return nil
}

// safeJoin resolves storageKey relative to basePath and rejects directory traversal.
func (s *LocalSpool) safeJoin(storageKey string) (string, error) {
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, storageKey))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt")
	}
	return absPath, nil
}

func mimeTypeToExt(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
