package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/vbonduro/listingwizard/internal/domain"
)

const (
	defaultMaxPhotoBytes = 10 * 1024 * 1024
	// maxPhotosPerRequest bounds one bulk upload; the quota still applies.
	maxPhotosPerRequest = 50
)

// allowedImageTypes is the set of MIME types accepted for uploaded photos.
// net/http.DetectContentType handles JPEG, PNG, and GIF via magic-byte
// sniffing. WebP is detected separately because the WHATWG sniff spec (and
// therefore the stdlib) does not include a WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

var (
	errPhotoTooLarge    = errors.New("photo too large")
	errUnsupportedImage = errors.New("unsupported image format")
)

// spoolUpload reads one uploaded file, checks it is an image and copies it
// into the session spool.
func (s *Server) spoolUpload(r *http.Request, sess *Session, fh *multipart.FileHeader) (domain.Attachment, error) {
	if fh.Size > s.maxPhotoBytes {
		return domain.Attachment{}, fmt.Errorf("%w: %s", errPhotoTooLarge, fh.Filename)
	}
	file, err := fh.Open()
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer closeWithLog(file, "upload file", s.logger)

	data, err := io.ReadAll(io.LimitReader(file, s.maxPhotoBytes+1))
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxPhotoBytes {
		return domain.Attachment{}, fmt.Errorf("%w: %s", errPhotoTooLarge, fh.Filename)
	}
	mimeType, ok := allowedImageMIME(data)
	if !ok {
		return domain.Attachment{}, fmt.Errorf("%w: %s", errUnsupportedImage, fh.Filename)
	}
	return sess.Spool.Save(r.Context(), fh.Filename, mimeType, bytes.NewReader(data))
}

// discardUploads removes spooled files that did not end up in the draft.
func (s *Server) discardUploads(ctx context.Context, sess *Session, photos []domain.Attachment) {
	for _, a := range photos {
		if err := sess.Spool.Discard(ctx, a); err != nil {
			s.logger.Error("failed to discard upload", "photo", a.Name, "error", err)
		}
	}
}

// notAccepted returns the photos of batch whose spooled file is not among
// accepted.
func notAccepted(batch, accepted []domain.Attachment) []domain.Attachment {
	kept := make(map[string]bool, len(accepted))
	for _, a := range accepted {
		kept[a.Ref] = true
	}
	var out []domain.Attachment
	for _, a := range batch {
		if !kept[a.Ref] {
			out = append(out, a)
		}
	}
	return out
}

func (s *Server) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errPhotoTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, errUnsupportedImage):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to store photo")
		s.logger.Error("store upload failed", "error", err)
	}
}

func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request, maxFiles int) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxPhotoBytes*int64(maxFiles)+1<<20)
	if err := r.ParseMultipartForm(s.maxPhotoBytes); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return false
	}
	return true
}

// handleUploadPhotos adds a batch of photos to a room. Photos beyond the
// shared quota are reported as rejected rather than failing the request.
func (s *Server) handleUploadPhotos(w http.ResponseWriter, r *http.Request, sess *Session) {
	room, err := parseIndex(r, "room")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room index")
		return
	}
	if !s.parseUpload(w, r, maxPhotosPerRequest) {
		return
	}
	headers := r.MultipartForm.File["photos"]
	if len(headers) > maxPhotosPerRequest {
		writeError(w, http.StatusRequestEntityTooLarge, "too many photos in one request")
		return
	}

	photos := make([]domain.Attachment, 0, len(headers))
	for _, fh := range headers {
		a, err := s.spoolUpload(r, sess, fh)
		if err != nil {
			s.discardUploads(r.Context(), sess, photos)
			s.writeUploadError(w, err)
			return
		}
		photos = append(photos, a)
	}

	res, err := sess.Wizard.AddPhotos(room, photos)
	if err != nil {
		s.discardUploads(r.Context(), sess, photos)
		s.writeEditError(w, err)
		return
	}
	s.discardUploads(r.Context(), sess, notAccepted(photos, res.Accepted))
	writeJSON(w, http.StatusOK, newUploadView(res, s.buildView(sess)))
}

func (s *Server) handleRemovePhoto(w http.ResponseWriter, r *http.Request, sess *Session) {
	room, err := parseIndex(r, "room")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room index")
		return
	}
	photo, err := parseIndex(r, "photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid photo index")
		return
	}
	if err := sess.Wizard.RemovePhoto(room, photo); err != nil {
		s.writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildView(sess))
}

func (s *Server) handleSetCover(w http.ResponseWriter, r *http.Request, sess *Session) {
	if !s.parseUpload(w, r, 1) {
		return
	}
	headers := r.MultipartForm.File["image"]
	if len(headers) != 1 {
		writeError(w, http.StatusBadRequest, "image file required")
		return
	}
	a, err := s.spoolUpload(r, sess, headers[0])
	if err != nil {
		s.writeUploadError(w, err)
		return
	}
	if err := sess.Wizard.SetCover(a); err != nil {
		s.discardUploads(r.Context(), sess, []domain.Attachment{a})
		s.writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildView(sess))
}

func (s *Server) handleClearCover(w http.ResponseWriter, r *http.Request, sess *Session) {
	if err := sess.Wizard.ClearCover(); err != nil {
		s.writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildView(sess))
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request, sess *Session) {
	room, err := parseIndex(r, "room")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room index")
		return
	}
	photo, err := parseIndex(r, "photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid photo index")
		return
	}
	rooms := sess.Wizard.State().Draft.Rooms
	if room < 0 || room >= len(rooms) || photo < 0 || photo >= len(rooms[room].Photos) {
		writeError(w, http.StatusNotFound, "photo not found")
		return
	}
	s.streamAttachment(w, rooms[room].Photos[photo])
}

func (s *Server) handleGetCover(w http.ResponseWriter, r *http.Request, sess *Session) {
	cover := sess.Wizard.State().Draft.Cover
	if cover == nil {
		writeError(w, http.StatusNotFound, "no cover")
		return
	}
	s.streamAttachment(w, *cover)
}

func (s *Server) streamAttachment(w http.ResponseWriter, a domain.Attachment) {
	reader, err := a.Open()
	if err != nil {
		writeError(w, http.StatusNotFound, "photo not available")
		return
	}
	defer closeWithLog(reader, "photo reader", s.logger)

	w.Header().Set("Content-Type", a.MimeType)
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write photo failed", "photo", a.Name, "error", err)
	}
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
