package wizard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/listingwizard/internal/domain"
	"github.com/vbonduro/listingwizard/internal/schema"
	"github.com/vbonduro/listingwizard/internal/stage"
	"github.com/vbonduro/listingwizard/internal/submit"
	"github.com/vbonduro/listingwizard/internal/validate"
)

type fakeDrafts struct {
	mu      sync.Mutex
	stored  *domain.Draft
	saves   int
	cleared int
}

func (f *fakeDrafts) Load(context.Context) domain.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stored == nil {
		return schema.MustDefault().NewDraft()
	}
	return f.stored.Clone()
}

func (f *fakeDrafts) Save(d domain.Draft) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := d.Clone()
	f.stored = &c
	f.saves++
}

func (f *fakeDrafts) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = nil
	f.cleared++
	return nil
}

type fakeSubmitter struct {
	resp     submit.Response
	err      error
	started  chan struct{}
	release  chan struct{}
	payloads []submit.Payload
}

func (f *fakeSubmitter) Submit(ctx context.Context, p submit.Payload) (submit.Response, error) {
	f.payloads = append(f.payloads, p)
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	return f.resp, f.err
}

func photo(name string) domain.Attachment {
	return domain.NewAttachment(name, int64(len(name)), "image/jpeg", func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(name)), nil
	})
}

func newWizard(t *testing.T, sub submit.Submitter, cfg Config) (*Wizard, *fakeDrafts) {
	t.Helper()
	drafts := &fakeDrafts{}
	w := New(schema.MustDefault(), drafts, sub, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return w, drafts
}

func setFields(t *testing.T, w *Wizard, values map[string]string) {
	t.Helper()
	for k, v := range values {
		require.NoError(t, w.SetField(k, v))
	}
}

// completeAll fills every stage with valid data and advances to the last one.
func completeAll(t *testing.T, w *Wizard) {
	t.Helper()
	setFields(t, w, map[string]string{"title": "Villa de luxe", "propertyType": "villa", "transaction": "sale"})
	require.True(t, w.Next())
	setFields(t, w, map[string]string{"country": "France", "city": "Nice", "address": "1 Rue de la Paix"})
	require.True(t, w.Next())
	setFields(t, w, map[string]string{"price": "500000", "surface": "120"})
	require.True(t, w.Next())
	setFields(t, w, map[string]string{"ownerName": "Jean Dupont", "taxNumber": "1234567A"})
	require.True(t, w.Next())
	room, err := w.AddRoom("Kitchen")
	require.NoError(t, err)
	_, err = w.AddPhotos(room, []domain.Attachment{photo("k1.jpg")})
	require.NoError(t, err)
	require.NoError(t, w.SetCover(photo("cover.jpg")))
	require.True(t, w.Next())
	setFields(t, w, map[string]string{"contactName": "Ana", "contactEmail": "ana@example.com", "contactPhone": "+33 6 12 34 56"})
}

func TestNewWizardStartsAtFirstStage(t *testing.T) {
	w, _ := newWizard(t, &fakeSubmitter{}, Config{})

	assert.Equal(t, 0, w.Active())
	assert.Equal(t, Editing, w.Mode())
	assert.InDelta(t, 1.0/6.0, w.Progress(), 1e-9)
	for _, s := range w.Statuses() {
		assert.Equal(t, stage.Pristine, s)
	}
}

func TestNextRevealsErrorsAndStays(t *testing.T) {
	w, _ := newWizard(t, &fakeSubmitter{}, Config{})
	require.NoError(t, w.SetField("title", "Villa de luxe"))

	assert.False(t, w.Next())
	assert.Equal(t, 0, w.Active())

	fs := w.State().Fields[domain.Scalar("propertyType")]
	assert.True(t, fs.Touched)
	assert.Equal(t, domain.Invalid, fs.Verdict.Status)
	assert.Equal(t, validate.MsgRequired, fs.Verdict.Message)
	assert.Equal(t, stage.Blocked, w.Statuses()[0])
}

func TestNextAdvancesOnSatisfiedStage(t *testing.T) {
	w, _ := newWizard(t, &fakeSubmitter{}, Config{})
	setFields(t, w, map[string]string{"title": "Villa de luxe", "propertyType": "villa", "transaction": "sale"})

	assert.True(t, w.Next())
	assert.Equal(t, 1, w.Active())
	assert.InDelta(t, 2.0/6.0, w.Progress(), 1e-9)
	assert.Equal(t, stage.Satisfied, w.Statuses()[0])
}

func TestPreviousIsBoundedAtZero(t *testing.T) {
	w, _ := newWizard(t, &fakeSubmitter{}, Config{})
	assert.False(t, w.Previous())
	assert.Equal(t, 0, w.Active())

	setFields(t, w, map[string]string{"title": "Villa de luxe", "propertyType": "villa", "transaction": "sale"})
	require.True(t, w.Next())
	require.NoError(t, w.SetField("title", "A"))

	assert.True(t, w.Previous(), "going back never validates")
	assert.Equal(t, 0, w.Active())
}

func TestMutationsAreSaved(t *testing.T) {
	w, drafts := newWizard(t, &fakeSubmitter{}, Config{})

	require.NoError(t, w.SetField("title", "Villa de luxe"))
	_, err := w.AppendEntry("features")
	require.NoError(t, err)

	assert.Equal(t, 2, drafts.saves)
	assert.Equal(t, "Villa de luxe", drafts.stored.Fields["title"])
	assert.Len(t, drafts.stored.Collections["features"], 1)
}

func TestFailedMutationIsNotSaved(t *testing.T) {
	w, drafts := newWizard(t, &fakeSubmitter{}, Config{})

	err := w.SetField("nope", "x")
	assert.True(t, errors.Is(err, stage.ErrUnknownField))
	assert.Equal(t, 0, drafts.saves)
}

func TestRestoreLoadsStoredDraft(t *testing.T) {
	w, drafts := newWizard(t, &fakeSubmitter{}, Config{})
	d := schema.MustDefault().NewDraft()
	d.Fields["title"] = "Stored villa"
	drafts.stored = &d

	w.Restore(context.Background())

	st := w.State()
	assert.Equal(t, "Stored villa", st.Draft.Fields["title"])
	assert.Equal(t, 0, st.Active)
	assert.Empty(t, st.Fields)
}

func TestAddPhotosUsesConfiguredLimit(t *testing.T) {
	w, _ := newWizard(t, &fakeSubmitter{}, Config{PhotoLimit: 5})
	room, err := w.AddRoom("Kitchen")
	require.NoError(t, err)

	var batch []domain.Attachment
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		batch = append(batch, photo(n+".jpg"))
	}
	res, err := w.AddPhotos(room, batch)
	require.NoError(t, err)

	assert.Len(t, res.Accepted, 5)
	assert.Equal(t, 2, res.Rejected)
	assert.Equal(t, 0, w.PhotoRemaining())
	assert.Equal(t, 5, w.State().Draft.PhotoCount())
}

func TestEntryLifecycle(t *testing.T) {
	w, _ := newWizard(t, &fakeSubmitter{}, Config{})

	i, err := w.AppendEntry("features")
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	assert.Equal(t, domain.Invalid, w.State().Fields[domain.Item("features", 0, "name")].Verdict.Status)

	require.NoError(t, w.UpdateEntry("features", 0, "name", "Pool"))
	assert.Equal(t, domain.Valid, w.State().Fields[domain.Item("features", 0, "name")].Verdict.Status)

	require.NoError(t, w.RemoveEntry("features", 0))
	st := w.State()
	assert.Empty(t, st.Draft.Collections["features"])
	_, ok := st.Fields[domain.Item("features", 0, "name")]
	assert.False(t, ok)
}

func TestConfirmRequiresLastStage(t *testing.T) {
	w, _ := newWizard(t, &fakeSubmitter{}, Config{})

	_, err := w.Confirm()
	assert.True(t, errors.Is(err, ErrNotLastStage))
	assert.Equal(t, Editing, w.Mode())
}

func TestConfirmRejectsBlockedEarlierStage(t *testing.T) {
	w, _ := newWizard(t, &fakeSubmitter{}, Config{})
	completeAll(t, w)
	require.NoError(t, w.SetField("title", "A"))

	_, err := w.Confirm()
	assert.True(t, errors.Is(err, ErrStageBlocked))
	assert.Contains(t, err.Error(), "general")
	assert.Equal(t, Editing, w.Mode())
}

func TestConfirmOpensRecap(t *testing.T) {
	w, _ := newWizard(t, &fakeSubmitter{}, Config{})
	completeAll(t, w)

	summary, err := w.Confirm()
	require.NoError(t, err)
	assert.Equal(t, Recap, w.Mode())
	assert.Equal(t, "cover.jpg", summary.Cover)
	assert.Equal(t, []RoomSummary{{Name: "Kitchen", Photos: []string{"k1.jpg"}}}, summary.Rooms)
	require.Len(t, summary.Stages, 6)
	assert.Equal(t, "Villa de luxe", summary.Stages[0].Fields[0].Value)

	again, err := w.Recap()
	require.NoError(t, err)
	assert.Equal(t, summary, again)
}

func TestEditDuringRecapLeavesRecap(t *testing.T) {
	w, _ := newWizard(t, &fakeSubmitter{}, Config{})
	completeAll(t, w)
	_, err := w.Confirm()
	require.NoError(t, err)

	require.NoError(t, w.SetField("contactName", "Ana Maria"))

	assert.Equal(t, Editing, w.Mode())
	_, err = w.Recap()
	assert.True(t, errors.Is(err, ErrNotInRecap))
}

func TestSubmitRequiresRecap(t *testing.T) {
	sub := &fakeSubmitter{resp: submit.Response{Success: true}}
	w, _ := newWizard(t, sub, Config{})
	completeAll(t, w)

	_, err := w.Submit(context.Background())
	assert.True(t, errors.Is(err, ErrNotInRecap))
	assert.Empty(t, sub.payloads)
}

func TestSubmitSuccessClearsDraft(t *testing.T) {
	sub := &fakeSubmitter{resp: submit.Response{Success: true}}
	w, drafts := newWizard(t, sub, Config{})
	completeAll(t, w)
	_, err := w.Confirm()
	require.NoError(t, err)

	resp, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Success)

	require.Len(t, sub.payloads, 1)
	assert.Equal(t, "Villa de luxe", sub.payloads[0].Fields()["title"])

	assert.Equal(t, 1, drafts.cleared)
	assert.Nil(t, drafts.stored)

	st := w.State()
	assert.Equal(t, "", st.Draft.Fields["title"])
	assert.Empty(t, st.Draft.Rooms)
	assert.Nil(t, st.Draft.Cover)
	assert.Equal(t, 0, st.Active)
	assert.Equal(t, Submitted, w.Mode())
}

func TestSubmitFailureLeavesDraftIntact(t *testing.T) {
	sub := &fakeSubmitter{resp: submit.Response{Success: false, Message: "X"}, err: &submit.Error{Message: "X"}}
	w, drafts := newWizard(t, sub, Config{})
	completeAll(t, w)
	_, err := w.Confirm()
	require.NoError(t, err)
	before := w.State()
	savesBefore := drafts.saves

	_, err = w.Submit(context.Background())

	var subErr *submit.Error
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, "X", subErr.Message)
	assert.Equal(t, 0, drafts.cleared)
	assert.Equal(t, savesBefore, drafts.saves)
	assert.Equal(t, "Villa de luxe", drafts.stored.Fields["title"])
	assert.Equal(t, before.Draft.Fields, w.State().Draft.Fields)
	assert.Equal(t, Recap, w.Mode(), "a failed submission can be retried from the recap")
}

func TestSubmitRefusalWithoutErrorKeepsDraft(t *testing.T) {
	sub := &fakeSubmitter{resp: submit.Response{Success: false, Message: "Listing rejected"}}
	w, drafts := newWizard(t, sub, Config{})
	completeAll(t, w)
	_, err := w.Confirm()
	require.NoError(t, err)

	resp, err := w.Submit(context.Background())

	assert.False(t, resp.Success)
	var subErr *submit.Error
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, "Listing rejected", subErr.Message)
	assert.Equal(t, 0, drafts.cleared)
	assert.Equal(t, "Villa de luxe", w.State().Draft.Fields["title"])
	assert.Len(t, w.State().Draft.Rooms, 1)
	assert.Equal(t, Recap, w.Mode())
}

func TestSubmitAtMostOneInFlight(t *testing.T) {
	sub := &fakeSubmitter{
		err:     &submit.Error{Message: "try later"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	w, _ := newWizard(t, sub, Config{})
	completeAll(t, w)
	_, err := w.Confirm()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background())
		done <- err
	}()
	<-sub.started

	assert.Equal(t, Submitting, w.Mode())
	_, err = w.Submit(context.Background())
	assert.True(t, errors.Is(err, ErrSubmissionInFlight))

	require.NoError(t, w.SetField("contactName", "Ana Maria"), "editing stays possible while submitting")
	assert.True(t, w.Previous())

	close(sub.release)
	err = <-done
	var subErr *submit.Error
	require.True(t, errors.As(err, &subErr))

	assert.Equal(t, Editing, w.Mode(), "edits made during the request invalidate the recap")
	assert.Equal(t, "Ana Maria", w.State().Draft.Fields["contactName"])
}
