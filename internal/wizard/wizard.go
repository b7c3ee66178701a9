// Package wizard sequences the stages of a listing draft and drives its
// submission.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/vbonduro/listingwizard/internal/attachment"
	"github.com/vbonduro/listingwizard/internal/domain"
	"github.com/vbonduro/listingwizard/internal/quota"
	"github.com/vbonduro/listingwizard/internal/schema"
	"github.com/vbonduro/listingwizard/internal/stage"
	"github.com/vbonduro/listingwizard/internal/submit"
)

var (
	ErrNotLastStage       = errors.New("confirmation is only possible from the last stage")
	ErrStageBlocked       = errors.New("stage is not complete")
	ErrNotInRecap         = errors.New("draft has not been confirmed")
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
)

type Mode int

const (
	Editing Mode = iota
	Recap
	Submitting
	Submitted
)

func (m Mode) String() string {
	switch m {
	case Recap:
		return "recap"
	case Submitting:
		return "submitting"
	case Submitted:
		return "submitted"
	default:
		return "editing"
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// draftRepository is the subset of persist.Adapter the wizard requires.
type draftRepository interface {
	Load(ctx context.Context) domain.Draft
	Save(d domain.Draft)
	Clear(ctx context.Context) error
}

type Config struct {
	// PhotoLimit caps the photos across all rooms. Zero means quota.DefaultCap.
	PhotoLimit int
	// Spool, when set, is purged after a successful submission.
	Spool attachment.Spool
}

// Wizard owns one session's draft. Methods are safe for concurrent use.
type Wizard struct {
	schema    *schema.Schema
	drafts    draftRepository
	submitter submit.Submitter
	spool     attachment.Spool
	limit     int
	logger    *slog.Logger
	inflight  *semaphore.Weighted

	mu       sync.Mutex
	state    domain.State
	mode     Mode
	revision uint64
}

func New(sc *schema.Schema, drafts draftRepository, submitter submit.Submitter, cfg Config, logger *slog.Logger) *Wizard {
	limit := cfg.PhotoLimit
	if limit <= 0 {
		limit = quota.DefaultCap
	}
	return &Wizard{
		schema:    sc,
		drafts:    drafts,
		submitter: submitter,
		spool:     cfg.Spool,
		limit:     limit,
		logger:    logger,
		inflight:  semaphore.NewWeighted(1),
		state:     stage.Initial(sc.NewDraft()),
	}
}

// Restore replaces the draft with the stored one and rewinds to stage 0.
func (w *Wizard) Restore(ctx context.Context) {
	d := w.drafts.Load(ctx)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = stage.Initial(d)
	w.mode = Editing
	w.revision++
}

func (w *Wizard) Schema() *schema.Schema { return w.schema }

// State returns a copy of the current aggregate.
func (w *Wizard) State() domain.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Clone()
}

func (w *Wizard) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

func (w *Wizard) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Active
}

// Progress is the completed fraction, counting the active stage.
func (w *Wizard) Progress() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return float64(w.state.Active+1) / float64(w.schema.Len())
}

// Statuses returns the state of every stage in order.
func (w *Wizard) Statuses() []stage.Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]stage.Status, w.schema.Len())
	for i := range out {
		out[i] = stage.StatusOf(w.schema, i, w.state)
	}
	return out
}

// apply reduces ev into the state and queues the new draft for saving.
// Must be called with mu held.
func (w *Wizard) apply(ev stage.Event) error {
	next, err := stage.Reduce(w.schema, w.state, ev)
	if err != nil {
		return err
	}
	w.state = next
	w.revision++
	if w.mode == Recap || w.mode == Submitted {
		w.mode = Editing
	}
	w.drafts.Save(w.state.Draft)
	return nil
}

func (w *Wizard) dispatch(ev stage.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.apply(ev)
}

func (w *Wizard) SetField(name, value string) error {
	return w.dispatch(stage.SetField{Field: name, Value: value})
}

// AppendEntry adds an empty entry to a collection and returns its index.
func (w *Wizard) AppendEntry(collection string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.apply(stage.AppendEntry{Collection: collection}); err != nil {
		return 0, err
	}
	return len(w.state.Draft.Collections[collection]) - 1, nil
}

func (w *Wizard) UpdateEntry(collection string, index int, field, value string) error {
	return w.dispatch(stage.UpdateEntry{Collection: collection, Index: index, Field: field, Value: value})
}

func (w *Wizard) RemoveEntry(collection string, index int) error {
	return w.dispatch(stage.RemoveEntry{Collection: collection, Index: index})
}

// AddRoom appends a room and returns its index.
func (w *Wizard) AddRoom(name string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.apply(stage.AddRoom{Name: name}); err != nil {
		return 0, err
	}
	return len(w.state.Draft.Rooms) - 1, nil
}

func (w *Wizard) RenameRoom(index int, name string) error {
	return w.dispatch(stage.RenameRoom{Index: index, Name: name})
}

func (w *Wizard) RemoveRoom(index int) error {
	return w.dispatch(stage.RemoveRoom{Index: index})
}

// AddPhotos adds photos to a room within the shared quota. The result lists
// the accepted photos and counts those over the quota or already present.
func (w *Wizard) AddPhotos(room int, photos []domain.Attachment) (quota.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, err := quota.Allocate(w.state.Draft.Rooms, room, photos, w.limit)
	if err != nil {
		return quota.Result{}, err
	}
	if err := w.apply(stage.AddPhotos{Room: room, Photos: photos, Limit: w.limit}); err != nil {
		return quota.Result{}, err
	}
	if res.Rejected > 0 {
		w.logger.Info("photo quota reached", "room", room, "accepted", len(res.Accepted), "rejected", res.Rejected)
	}
	return res, nil
}

func (w *Wizard) RemovePhoto(room, index int) error {
	return w.dispatch(stage.RemovePhoto{Room: room, Index: index})
}

func (w *Wizard) SetCover(a domain.Attachment) error {
	return w.dispatch(stage.SetCover{Cover: a})
}

func (w *Wizard) ClearCover() error {
	return w.dispatch(stage.ClearCover{})
}

// PhotoRemaining is the number of photos that can still be added.
func (w *Wizard) PhotoRemaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return quota.Remaining(w.state.Draft.Rooms, w.limit)
}

// Next touches every field of the active stage and advances when its gate
// holds. It reports whether the active stage changed.
func (w *Wizard) Next() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	next, err := stage.Reduce(w.schema, w.state, stage.TouchStage{Stage: w.state.Active})
	if err != nil {
		w.logger.Error("failed to touch stage", "stage", w.state.Active, "error", err)
		return false
	}
	w.state = next
	if !stage.Gate(w.schema, w.state.Active, w.state) || w.state.Active >= w.schema.Len()-1 {
		return false
	}
	w.state.Active++
	return true
}

// Previous moves back one stage without validating, stopping at stage 0.
func (w *Wizard) Previous() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Active == 0 {
		return false
	}
	w.state.Active--
	if w.mode == Recap {
		w.mode = Editing
	}
	return true
}

// Confirm opens the read-only recap. It is only reachable from the last
// stage and only when no stage is blocked.
func (w *Wizard) Confirm() (Summary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	last := w.schema.Len() - 1
	if w.state.Active != last {
		return Summary{}, ErrNotLastStage
	}
	next, err := stage.Reduce(w.schema, w.state, stage.TouchStage{Stage: last})
	if err != nil {
		return Summary{}, err
	}
	w.state = next
	if idx := stage.FirstBlocked(w.schema, w.state); idx >= 0 {
		return Summary{}, fmt.Errorf("%w: %s", ErrStageBlocked, w.schema.Stages[idx].Name)
	}
	if w.mode != Submitting {
		w.mode = Recap
	}
	return summarize(w.schema, w.state.Draft), nil
}

// Recap returns the summary of a confirmed draft.
func (w *Wizard) Recap() (Summary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode != Recap && w.mode != Submitting {
		return Summary{}, ErrNotInRecap
	}
	return summarize(w.schema, w.state.Draft), nil
}

// Submit sends the confirmed draft. On success the stored draft is removed
// and the session starts over; on failure nothing changes and the endpoint's
// message is returned as *submit.Error. Edits remain possible while the
// request is in flight.
func (w *Wizard) Submit(ctx context.Context) (submit.Response, error) {
	if !w.inflight.TryAcquire(1) {
		return submit.Response{}, ErrSubmissionInFlight
	}
	defer w.inflight.Release(1)

	w.mu.Lock()
	if w.mode != Recap {
		w.mu.Unlock()
		return submit.Response{}, ErrNotInRecap
	}
	if idx := stage.FirstBlocked(w.schema, w.state); idx >= 0 {
		w.mode = Editing
		w.mu.Unlock()
		return submit.Response{}, fmt.Errorf("%w: %s", ErrStageBlocked, w.schema.Stages[idx].Name)
	}
	d := w.state.Draft.Clone()
	rev := w.revision
	w.mode = Submitting
	w.mu.Unlock()

	payload, err := submit.Assemble(w.schema, d)
	if err != nil {
		w.finishFailed(rev)
		return submit.Response{}, err
	}

	w.logger.Info("submitting draft", "rooms", len(d.Rooms), "photos", d.PhotoCount())
	resp, err := w.submitter.Submit(ctx, payload)
	if err != nil {
		w.logger.Warn("submission failed", "error", err)
		w.finishFailed(rev)
		return resp, err
	}
	if !resp.Success {
		w.logger.Warn("submission refused", "message", resp.Message)
		w.finishFailed(rev)
		return resp, submit.Refusal(resp)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.drafts.Clear(context.WithoutCancel(ctx)); err != nil {
		w.logger.Error("failed to clear stored draft", "error", err)
	}
	if w.spool != nil {
		if err := w.spool.Purge(context.WithoutCancel(ctx)); err != nil {
			w.logger.Error("failed to purge photo spool", "error", err)
		}
	}
	w.state = stage.Initial(w.schema.NewDraft())
	w.mode = Submitted
	w.revision++
	w.logger.Info("submission accepted", "message", resp.Message)
	return resp, nil
}

// finishFailed leaves Submitting. The recap is kept only if nothing was
// edited while the request was in flight.
func (w *Wizard) finishFailed(rev uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode != Submitting {
		return
	}
	if w.revision == rev {
		w.mode = Recap
		return
	}
	w.mode = Editing
}
