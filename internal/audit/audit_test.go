package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPublisher_FillsIDAndTimestamp(t *testing.T) {
	inbox := make(chan Event, 1)
	p := NewPublisher(inbox, discardLogger())

	p.Emit(context.Background(), Event{
		Institution: "Bank_A",
		Action:      ActionTransactionSubmitted,
		Subject:     "tx-1",
	})

	got := <-inbox
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, ActionTransactionSubmitted, got.Action)
}

func TestPublisher_DropsWhenInboxFull(t *testing.T) {
	inbox := make(chan Event, 1)
	p := NewPublisher(inbox, discardLogger())

	p.Emit(context.Background(), Event{Action: ActionBlockMined})
	// Must not block even though nothing consumes the channel.
	p.Emit(context.Background(), Event{Action: ActionBlockMined})

	assert.Len(t, inbox, 1)
}

func TestWorker_PersistsEmittedEvents(t *testing.T) {
	inbox := make(chan Event, 16)
	store := NewInMemoryStore()
	p := NewPublisher(inbox, discardLogger())
	w := NewWorker(inbox, discardLogger(), store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	p.Emit(ctx, Event{Institution: "Bank_A", Action: ActionCredentialIssued, Subject: "proof-1"})
	p.Emit(ctx, Event{Institution: "Bank_B", Action: ActionCredentialVerified, Subject: "proof-1"})

	require.Eventually(t, func() bool {
		events, err := store.ListAll(context.Background())
		return err == nil && len(events) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	forA, err := store.ListByInstitution(context.Background(), "Bank_A")
	require.NoError(t, err)
	require.Len(t, forA, 1)
	assert.Equal(t, ActionCredentialIssued, forA[0].Action)
}

func TestWorker_DrainsInboxOnShutdown(t *testing.T) {
	inbox := make(chan Event, 16)
	store := NewInMemoryStore()
	w := NewWorker(inbox, discardLogger(), store)

	// Queue events before the worker ever runs, then cancel immediately:
	// they must still be persisted by the shutdown drain.
	inbox <- Event{ID: uuid.New(), Timestamp: time.Now(), Action: ActionChainSaved}
	inbox <- Event{ID: uuid.New(), Timestamp: time.Now(), Action: ActionChainLoaded}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	events, listErr := store.ListAll(context.Background())
	require.NoError(t, listErr)
	assert.Len(t, events, 2)
}

type failingSink struct{ calls int }

func (f *failingSink) Append(context.Context, Event) error {
	f.calls++
	return errors.New("sink down")
}

func TestWorker_FailingSinkDoesNotBlockOthers(t *testing.T) {
	inbox := make(chan Event, 4)
	store := NewInMemoryStore()
	failing := &failingSink{}
	w := NewWorker(inbox, discardLogger(), failing, store)

	inbox <- Event{ID: uuid.New(), Timestamp: time.Now(), Action: ActionBlockMined}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = w.Run(ctx)

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, failing.calls)
}
