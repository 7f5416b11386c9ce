package auth

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStatusUpdater struct {
	calls      int
	lastID     uuid.UUID
	lastStatus UserStatus
	lastUpdate statusUpdate
	err        error
}

func (s *stubStatusUpdater) UpdateStatus(_ context.Context, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error) {
	s.calls++
	s.lastID = id
	s.lastStatus = status
	s.lastUpdate = statusUpdate{}
	for _, opt := range opts {
		opt(&s.lastUpdate)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &User{ID: id, Status: status}, nil
}

type captureSink struct {
	events []ActivityEvent
}

func (c *captureSink) Record(_ context.Context, event ActivityEvent) error {
	c.events = append(c.events, event)
	return nil
}

func TestUserStateMachineTransitions(t *testing.T) {
	ctx := context.Background()
	admin := ActorRef{ID: uuid.New().String(), Type: "user"}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newMachine := func() (*stubStatusUpdater, *captureSink, UserStateMachine) {
		repo := &stubStatusUpdater{}
		sink := &captureSink{}
		sm := NewUserStateMachine(repo,
			WithStateMachineClock(func() time.Time { return fixed }),
			WithStateMachineActivitySink(sink),
		)
		return repo, sink, sm
	}

	t.Run("active to banned stamps the ban time", func(t *testing.T) {
		repo, sink, sm := newMachine()
		user := &User{ID: uuid.New(), Status: UserStatusActive}

		updated, err := sm.Transition(ctx, admin, user, UserStatusBanned, WithTransitionReason("spam listings"))

		require.NoError(t, err)
		assert.Equal(t, UserStatusBanned, updated.Status)
		assert.Equal(t, user.ID, repo.lastID)
		require.NotNil(t, repo.lastUpdate.bannedAt)
		assert.Equal(t, fixed, *repo.lastUpdate.bannedAt)
		assert.False(t, repo.lastUpdate.clearBan)

		require.Len(t, sink.events, 1)
		event := sink.events[0]
		assert.Equal(t, ActivityEventUserStatusChanged, event.EventType)
		assert.Equal(t, UserStatusActive, event.FromStatus)
		assert.Equal(t, UserStatusBanned, event.ToStatus)
		assert.Equal(t, admin, event.Actor)
		assert.Equal(t, "spam listings", event.Metadata["reason"])
	})

	t.Run("banned to active clears the ban time", func(t *testing.T) {
		repo, sink, sm := newMachine()
		user := &User{ID: uuid.New(), Status: UserStatusBanned}

		updated, err := sm.Transition(ctx, admin, user, UserStatusActive)

		require.NoError(t, err)
		assert.Equal(t, UserStatusActive, updated.Status)
		assert.Nil(t, repo.lastUpdate.bannedAt)
		assert.True(t, repo.lastUpdate.clearBan)
		require.Len(t, sink.events, 1)
	})

	t.Run("archive stamps the archive time", func(t *testing.T) {
		repo, _, sm := newMachine()
		user := &User{ID: uuid.New(), Status: UserStatusActive}

		_, err := sm.Transition(ctx, admin, user, UserStatusArchived)

		require.NoError(t, err)
		require.NotNil(t, repo.lastUpdate.archivedAt)
		assert.Equal(t, fixed, *repo.lastUpdate.archivedAt)
	})

	t.Run("archived is terminal", func(t *testing.T) {
		repo, sink, sm := newMachine()
		user := &User{ID: uuid.New(), Status: UserStatusArchived}

		_, err := sm.Transition(ctx, admin, user, UserStatusActive)

		require.Error(t, err)
		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, textCodeTerminalState, richErr.TextCode)
		assert.Equal(t, 0, repo.calls)
		assert.Empty(t, sink.events)
	})

	t.Run("unknown target status is rejected", func(t *testing.T) {
		repo, _, sm := newMachine()
		user := &User{ID: uuid.New(), Status: UserStatusActive}

		_, err := sm.Transition(ctx, admin, user, "frozen")

		require.Error(t, err)
		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, textCodeInvalidTransition, richErr.TextCode)
		assert.Equal(t, 0, repo.calls)
	})

	t.Run("no-op when already in the target status", func(t *testing.T) {
		repo, sink, sm := newMachine()
		user := &User{ID: uuid.New(), Status: UserStatusBanned}

		updated, err := sm.Transition(ctx, admin, user, UserStatusBanned)

		require.NoError(t, err)
		assert.Same(t, user, updated)
		assert.Equal(t, 0, repo.calls)
		assert.Empty(t, sink.events)
	})

	t.Run("transitions require an actor", func(t *testing.T) {
		repo, _, sm := newMachine()
		user := &User{ID: uuid.New(), Status: UserStatusActive}

		_, err := sm.Transition(ctx, ActorRef{}, user, UserStatusBanned)

		assert.Equal(t, ErrMissingActor, err)
		assert.Equal(t, 0, repo.calls)
	})

	t.Run("system actor needs no ID", func(t *testing.T) {
		_, _, sm := newMachine()
		user := &User{ID: uuid.New(), Status: UserStatusActive}

		_, err := sm.Transition(ctx, ActorRef{Type: "system"}, user, UserStatusBanned)

		assert.NoError(t, err)
	})

	t.Run("nil user", func(t *testing.T) {
		_, _, sm := newMachine()

		_, err := sm.Transition(ctx, admin, nil, UserStatusBanned)

		assert.Equal(t, ErrIdentityNotFound, err)
	})

	t.Run("blank status reads as active", func(t *testing.T) {
		repo, _, sm := newMachine()
		user := &User{ID: uuid.New()}

		assert.Equal(t, UserStatusActive, sm.CurrentStatus(user))

		_, err := sm.Transition(ctx, admin, user, UserStatusBanned)
		require.NoError(t, err)
		assert.Equal(t, UserStatusBanned, repo.lastStatus)
	})

	t.Run("repo failure propagates without an event", func(t *testing.T) {
		repo, sink, sm := newMachine()
		repo.err = goerrors.New("write failed", goerrors.CategoryInternal)
		user := &User{ID: uuid.New(), Status: UserStatusActive}

		_, err := sm.Transition(ctx, admin, user, UserStatusBanned)

		assert.Error(t, err)
		assert.Empty(t, sink.events)
	})

	t.Run("transition metadata reaches the event", func(t *testing.T) {
		_, sink, sm := newMachine()
		user := &User{ID: uuid.New(), Status: UserStatusActive}

		_, err := sm.Transition(ctx, admin, user, UserStatusBanned,
			WithTransitionMetadata(map[string]any{"ticket": "TRUST-42"}),
		)

		require.NoError(t, err)
		require.Len(t, sink.events, 1)
		assert.Equal(t, "TRUST-42", sink.events[0].Metadata["ticket"])
	})
}
