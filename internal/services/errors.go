// Package services implements the business logic of the community core: the
// voting engine, the content access guard, properties, the forum, blog posts,
// and notifications. This file centralizes the service-level error values so
// they can be consistently returned by service methods and checked by
// callers.
//
// Errors are grouped into four classes, each with a class sentinel that
// specific errors wrap. Callers that only care about the class can use
// errors.Is with the sentinel (e.g. errors.Is(err, ErrValidation)); callers
// that need the exact case match the specific value. Translation into
// user-facing messages or HTTP status codes belongs to the embedding
// presentation layer, not here.
package services

import (
	"errors"
	"fmt"
)

// Class sentinels.
var (
	// ErrValidation marks malformed or missing input. Always recoverable by
	// correcting the request; never retried internally.
	ErrValidation = errors.New("invalid input")

	// ErrState marks an operation that is not permitted in the subject's
	// current lifecycle state (e.g. mutating an open voting).
	ErrState = errors.New("operation not permitted in current state")

	// ErrAccessDenied is returned for password-gated content requested
	// without a valid grant or correct password. Read paths translate it
	// into the obscured-content projection instead of a hard failure.
	ErrAccessDenied = errors.New("access denied")

	// ErrForbidden is returned when the actor is not allowed to manage the
	// subject (not its creator and not an admin).
	ErrForbidden = errors.New("forbidden")
)

// Validation cases.
var (
	// ErrMissingFields is returned when a required field is empty.
	ErrMissingFields = fmt.Errorf("%w: required field is empty", ErrValidation)

	// ErrTooFewOptions is returned when a voting is created or edited with
	// fewer than two non-empty options.
	ErrTooFewOptions = fmt.Errorf("%w: at least 2 non-empty options required", ErrValidation)

	// ErrBadDateRange is returned when a voting's start date is not strictly
	// before its end date.
	ErrBadDateRange = fmt.Errorf("%w: end date must be after start date", ErrValidation)

	// ErrStartInPast is returned when a voting is scheduled to start before
	// the current time.
	ErrStartInPast = fmt.Errorf("%w: start date is in the past", ErrValidation)

	// ErrInvalidOption is returned when the chosen option does not belong to
	// the voting.
	ErrInvalidOption = fmt.Errorf("%w: option does not belong to this voting", ErrValidation)

	// ErrInvalidContentType is returned for a content type outside the
	// closed voting/post/topic set.
	ErrInvalidContentType = fmt.Errorf("%w: unknown content type", ErrValidation)

	// ErrEmptyPassword is returned when a blank content password is set.
	ErrEmptyPassword = fmt.Errorf("%w: password must not be empty", ErrValidation)

	// ErrNonPositiveArea is returned when a property is registered with a
	// zero or negative area.
	ErrNonPositiveArea = fmt.Errorf("%w: area must be positive", ErrValidation)

	// ErrDuplicateNumber is returned when a property number is already
	// registered.
	ErrDuplicateNumber = fmt.Errorf("%w: property number already registered", ErrValidation)

	// ErrBadImageURL is returned when a topic image link is not http(s).
	ErrBadImageURL = fmt.Errorf("%w: image url must start with http:// or https://", ErrValidation)
)

// State cases.
var (
	// ErrVotingOpen is returned when an open voting is edited or deleted;
	// active votings are immutable.
	ErrVotingOpen = fmt.Errorf("%w: voting is open", ErrState)

	// ErrVotingClosed is returned when a vote is submitted outside the open
	// window or while the voting is deactivated.
	ErrVotingClosed = fmt.Errorf("%w: voting is not open", ErrState)

	// ErrVotingHasVotes is returned when a voting that already has recorded
	// votes is edited. Votes are immutable audit records and are never
	// discarded by an edit.
	ErrVotingHasVotes = fmt.Errorf("%w: voting already has recorded votes", ErrState)

	// ErrPropertyHasVotes is returned when a property with recorded votes is
	// deleted.
	ErrPropertyHasVotes = fmt.Errorf("%w: property has recorded votes", ErrState)
)

// Standing and duplication.
var (
	// ErrNoProperties is returned when an account without any registered
	// property attempts to vote.
	ErrNoProperties = errors.New("no registered property for this account")

	// ErrAlreadyVoted is returned when any property owned by the account has
	// already voted in the voting.
	ErrAlreadyVoted = errors.New("already voted in this voting")
)

// Not-found cases.
var (
	ErrVotingNotFound       = errors.New("voting not found")
	ErrPropertyNotFound     = errors.New("property not found")
	ErrTopicNotFound        = errors.New("topic not found")
	ErrPostNotFound         = errors.New("post not found")
	ErrParentPostNotFound   = errors.New("parent post not found in this topic")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrVoteNotFound         = errors.New("vote not found")
)
