package web_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/listingwizard/internal/domain"
	"github.com/vbonduro/listingwizard/internal/logging"
	"github.com/vbonduro/listingwizard/internal/persist"
	"github.com/vbonduro/listingwizard/internal/schema"
	"github.com/vbonduro/listingwizard/internal/submit"
	"github.com/vbonduro/listingwizard/internal/web"
)

func newIdleSessions(t *testing.T, storage persist.Storage, idle time.Duration) *web.Sessions {
	t.Helper()
	sessions := web.NewSessions(schema.MustDefault(), web.SessionConfig{
		Storage:     storage,
		Submitter:   submit.NewHTTPSubmitter("http://127.0.0.1:0", time.Second),
		SpoolRoot:   t.TempDir(),
		KeyPrefix:   persist.DefaultKey,
		IdleTimeout: idle,
	}, logging.Discard())
	t.Cleanup(sessions.Close)
	return sessions
}

func TestSessionsEvictIdle(t *testing.T) {
	ctx := context.Background()
	storage := persist.NewMemoryStorage()
	sessions := newIdleSessions(t, storage, time.Hour)

	sess, err := sessions.Get(ctx, "villa")
	require.NoError(t, err)
	require.NoError(t, sess.Wizard.SetField("title", "Villa de luxe"))
	photo, err := sess.Spool.Save(ctx, "kitchen.jpg", "image/jpeg", bytes.NewReader([]byte("kitchen")))
	require.NoError(t, err)

	assert.Equal(t, 0, sessions.Evict(ctx, time.Now()), "recently used sessions stay")
	assert.Equal(t, 1, sessions.Evict(ctx, time.Now().Add(2*time.Hour)))

	raw, found, err := storage.Get(ctx, sessions.DraftKey("villa"))
	require.NoError(t, err)
	require.True(t, found, "the draft is written out on eviction")
	d, err := persist.Unmarshal(schema.MustDefault(), raw)
	require.NoError(t, err)
	assert.Equal(t, "Villa de luxe", d.Fields["title"])

	_, err = photo.Open()
	assert.True(t, errors.Is(err, domain.ErrAttachmentMissing), "spooled photos are deleted")

	again, err := sessions.Get(ctx, "villa")
	require.NoError(t, err)
	assert.NotSame(t, sess, again)
	assert.Equal(t, "Villa de luxe", again.Wizard.State().Draft.Fields["title"])
}

func TestSessionsWithoutIdleTimeoutAreKept(t *testing.T) {
	ctx := context.Background()
	sessions := newIdleSessions(t, persist.NewMemoryStorage(), 0)

	sess, err := sessions.Get(ctx, "villa")
	require.NoError(t, err)

	assert.Equal(t, 0, sessions.Evict(ctx, time.Now().Add(24*time.Hour)))
	again, err := sessions.Get(ctx, "villa")
	require.NoError(t, err)
	assert.Same(t, sess, again)
}

func TestSessionsRunEvictionStopsWithContext(t *testing.T) {
	sessions := newIdleSessions(t, persist.NewMemoryStorage(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sessions.RunEviction(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("eviction loop did not stop")
	}
}
