package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/templui/usermap/internal/model"
	"github.com/templui/usermap/internal/repository"
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = errors.New("invalid account state transition")

// ConfirmationState is the email confirmation dimension of an account.
type ConfirmationState string

const (
	StateUnconfirmed ConfirmationState = "unconfirmed"
	StateConfirmed   ConfirmationState = "confirmed"
)

// ConfirmResult is the outcome of a confirmation attempt.
type ConfirmResult int

const (
	ConfirmResultInvalidLink ConfirmResult = iota
	ConfirmResultConfirmed
	ConfirmResultAlreadyConfirmed
)

func (r ConfirmResult) String() string {
	switch r {
	case ConfirmResultConfirmed:
		return "confirmed"
	case ConfirmResultAlreadyConfirmed:
		return "already_confirmed"
	default:
		return "invalid_link"
	}
}

// Lifecycle owns every change to is_confirmed and is_active.
// Confirmation is a one-way latch; activity is an administrative flag
// that can flip either way independently of it.
type Lifecycle struct {
	users         repository.UserRepository
	defaultActive bool
	transitions   map[ConfirmationState]map[ConfirmationState]struct{}
}

func NewLifecycle(users repository.UserRepository, defaultActive bool) *Lifecycle {
	return &Lifecycle{
		users:         users,
		defaultActive: defaultActive,
		transitions: map[ConfirmationState]map[ConfirmationState]struct{}{
			StateUnconfirmed: {
				StateConfirmed: {},
			},
		},
	}
}

// CurrentState reports the confirmation state of user.
func (l *Lifecycle) CurrentState(user *model.User) ConfirmationState {
	if user.IsConfirmed {
		return StateConfirmed
	}
	return StateUnconfirmed
}

// Initialize puts a new account in its registration state.
func (l *Lifecycle) Initialize(user *model.User) {
	user.IsConfirmed = false
	user.IsActive = l.defaultActive
}

func (l *Lifecycle) CanTransition(from, to ConfirmationState) bool {
	_, ok := l.transitions[from][to]
	return ok
}

// Transition moves user to the target confirmation state.
// Moving to the current state is reported as AlreadyConfirmed for the
// confirmed state and is otherwise a no-op.
func (l *Lifecycle) Transition(ctx context.Context, user *model.User, target ConfirmationState) (ConfirmResult, error) {
	if user == nil {
		return ConfirmResultInvalidLink, fmt.Errorf("%w: user is nil", ErrInvalidTransition)
	}

	from := l.CurrentState(user)
	if from == target {
		if target == StateConfirmed {
			return ConfirmResultAlreadyConfirmed, nil
		}
		return ConfirmResultInvalidLink, nil
	}

	if !l.CanTransition(from, target) {
		return ConfirmResultInvalidLink, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
	}

	won, err := l.users.MarkConfirmed(ctx, user.ID)
	if err != nil {
		return ConfirmResultInvalidLink, fmt.Errorf("failed to confirm account: %w", err)
	}

	user.IsConfirmed = true
	if !won {
		return ConfirmResultAlreadyConfirmed, nil
	}

	slog.InfoContext(ctx, "account confirmed", "user_id", user.ID)
	return ConfirmResultConfirmed, nil
}

// Confirm latches the account to confirmed.
func (l *Lifecycle) Confirm(ctx context.Context, user *model.User) (ConfirmResult, error) {
	return l.Transition(ctx, user, StateConfirmed)
}

// Deactivate blocks sign-in without touching confirmation. Idempotent.
func (l *Lifecycle) Deactivate(ctx context.Context, user *model.User) error {
	return l.setActive(ctx, user, false)
}

// Reactivate lifts a deactivation. Idempotent.
func (l *Lifecycle) Reactivate(ctx context.Context, user *model.User) error {
	return l.setActive(ctx, user, true)
}

func (l *Lifecycle) setActive(ctx context.Context, user *model.User, active bool) error {
	if user.IsActive == active {
		return nil
	}

	err := l.users.SetActive(ctx, user.ID, active)
	if err != nil {
		return fmt.Errorf("failed to update account activity: %w", err)
	}

	user.IsActive = active
	slog.InfoContext(ctx, "account activity changed", "user_id", user.ID, "active", active)
	return nil
}
