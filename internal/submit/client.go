package submit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response is the endpoint's answer to a submission.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Error is a submission the endpoint refused. Message is shown to the user
// as is.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Refusal builds the error for a response that reports success=false.
func Refusal(resp Response) *Error {
	if resp.Message == "" {
		return &Error{Message: defaultFailureMessage}
	}
	return &Error{Message: resp.Message}
}

// Submitter delivers a payload to the listing endpoint. A refused submission
// is reported as *Error.
type Submitter interface {
	Submit(ctx context.Context, p Payload) (Response, error)
}

const defaultFailureMessage = "submission failed"

// HTTPSubmitter posts payloads as multipart/form-data.
type HTTPSubmitter struct {
	client *resty.Client
	url    string
}

func NewHTTPSubmitter(endpoint string, timeout time.Duration) *HTTPSubmitter {
	return &HTTPSubmitter{
		client: resty.New().SetTimeout(timeout),
		url:    endpoint,
	}
}

func (s *HTTPSubmitter) Submit(ctx context.Context, p Payload) (Response, error) {
	form := make(map[string]string)
	var readers []io.ReadCloser
	defer func() {
		for _, r := range readers {
			if err := r.Close(); err != nil {
				slog.Error("failed to close attachment", "error", err)
			}
		}
	}()

	req := s.client.R().SetContext(ctx)
	for _, part := range p.Parts {
		if part.File == nil {
			form[part.Name] = part.Value
			continue
		}
		r, err := part.File.Open()
		if err != nil {
			return Response{}, fmt.Errorf("failed to open %s: %w", part.Name, err)
		}
		readers = append(readers, r)
		contentType := part.File.MimeType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		req.SetMultipartField(part.Name, part.File.Name, contentType, r)
	}

	var ok, refused Response
	resp, err := req.
		SetMultipartFormData(form).
		SetResult(&ok).
		SetError(&refused).
		Post(s.url)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Response{}, fmt.Errorf("submission aborted: %w", err)
		}
		return Response{}, fmt.Errorf("failed to send submission: %w", err)
	}

	if resp.IsError() {
		msg := refused.Message
		if msg == "" {
			msg = fmt.Sprintf("%s (status %d)", defaultFailureMessage, resp.StatusCode())
		}
		return refused, &Error{Message: msg}
	}
	if !ok.Success {
		return ok, Refusal(ok)
	}
	return ok, nil
}
