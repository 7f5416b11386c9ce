package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	textCodeInvalidTransition = "INVALID_USER_STATE_TRANSITION"
	textCodeTerminalState     = "TERMINAL_USER_STATE"
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid user state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalState is returned when attempting to move away from a terminal status.
var ErrTerminalState = goerrors.New("user state is terminal", goerrors.CategoryConflict).
	WithTextCode(textCodeTerminalState).
	WithCode(goerrors.CodeConflict)

// ErrMissingActor is returned when a transition has no attributable actor.
var ErrMissingActor = goerrors.New("state transition requires an actor", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

type transitionOptions struct {
	metadata TransitionMetadata
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = map[string]any{}
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// StatusUpdater persists a status change; the Users repository satisfies it.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error)
}

// StatusUpdateOption carries the timestamp side effects of a transition.
type StatusUpdateOption func(*statusUpdate)

type statusUpdate struct {
	bannedAt   *time.Time
	archivedAt *time.Time
	clearBan   bool
}

// WithBannedAt stamps the ban time on the persisted row.
func WithBannedAt(t time.Time) StatusUpdateOption {
	return func(u *statusUpdate) { u.bannedAt = &t }
}

// WithArchivedAt stamps the archive time on the persisted row.
func WithArchivedAt(t time.Time) StatusUpdateOption {
	return func(u *statusUpdate) { u.archivedAt = &t }
}

// WithBanCleared resets the ban timestamp on reinstatement.
func WithBanCleared() StatusUpdateOption {
	return func(u *statusUpdate) { u.clearBan = true }
}

// UserStateMachine defines lifecycle operations for users.
type UserStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error)
	CurrentStatus(user *User) UserStatus
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*userStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *userStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *userStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *userStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

type userStateMachine struct {
	repo         StatusUpdater
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

// NewUserStateMachine builds the lifecycle machine over a status store.
// The transition graph is fixed: active and banned swap freely (ban and
// reinstate are admin actions), archived is terminal.
func NewUserStateMachine(repo StatusUpdater, opts ...StateMachineOption) UserStateMachine {
	sm := &userStateMachine{
		repo:         repo,
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}
	return sm
}

var allowedTransitions = map[UserStatus]map[UserStatus]struct{}{
	UserStatusActive: {
		UserStatusBanned:   {},
		UserStatusArchived: {},
	},
	UserStatusBanned: {
		UserStatusActive:   {},
		UserStatusArchived: {},
	},
	UserStatusArchived: {},
}

func (sm *userStateMachine) CurrentStatus(user *User) UserStatus {
	if user == nil {
		return ""
	}
	user.EnsureStatus()
	return user.Status
}

func (sm *userStateMachine) Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error) {
	if user == nil {
		return nil, ErrIdentityNotFound
	}

	if actor.ID == "" && actor.Type != "system" {
		return nil, ErrMissingActor
	}

	if !IsValidStatus(target) {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{"target": target})
	}

	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	from := sm.CurrentStatus(user)
	if from == target {
		return user, nil
	}

	targets, ok := allowedTransitions[from]
	if !ok || len(targets) == 0 {
		return nil, ErrTerminalState.WithMetadata(map[string]any{"from": from})
	}

	if _, ok := targets[target]; !ok {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{"from": from, "to": target})
	}

	updated, err := sm.repo.UpdateStatus(ctx, user.ID, target, sm.timestampOptions(from, target)...)
	if err != nil {
		return nil, err
	}

	sm.emit(ctx, actor, updated, from, target, options.metadata)

	return updated, nil
}

func (sm *userStateMachine) timestampOptions(from, to UserStatus) []StatusUpdateOption {
	now := sm.now()
	var opts []StatusUpdateOption

	if to == UserStatusBanned {
		opts = append(opts, WithBannedAt(now))
	} else if from == UserStatusBanned {
		opts = append(opts, WithBanCleared())
	}

	if to == UserStatusArchived {
		opts = append(opts, WithArchivedAt(now))
	}

	return opts
}

func (sm *userStateMachine) emit(ctx context.Context, actor ActorRef, user *User, from, to UserStatus, meta TransitionMetadata) {
	event := ActivityEvent{
		EventType:  ActivityEventUserStatusChanged,
		Actor:      actor,
		UserID:     user.ID.String(),
		FromStatus: from,
		ToStatus:   to,
		Metadata:   map[string]any{},
		OccurredAt: sm.now(),
	}

	if meta.Reason != "" {
		event.Metadata["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		event.Metadata[k] = v
	}

	if err := sm.activitySink.Record(ctx, event); err != nil {
		sm.logger.Warn("activity sink record error: %v", err)
	}
}
