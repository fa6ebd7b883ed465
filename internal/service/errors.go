package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service wraps exactly one kind;
// callers classify with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrAuthentication    = errors.New("authentication error")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUpstream          = errors.New("upstream error")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
)

// kindError is a message classified by a kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func errorf(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// upstream wraps an infrastructure failure as ErrUpstream, keeping the cause.
func upstream(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrUpstream, err))
}

var (
	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = newError(ErrValidation, "invalid ride id")

	// ErrInvalidLocation is returned when coordinates are out of range or the address is empty.
	ErrInvalidLocation = newError(ErrValidation, "invalid location: coordinates out of range or address missing")

	// ErrInvalidRideType is returned for an unknown service tier.
	ErrInvalidRideType = newError(ErrValidation, "invalid ride type")

	// ErrInvalidStatus is returned for an unknown ride status.
	ErrInvalidStatus = newError(ErrValidation, "invalid ride status")

	// ErrCancelReasonRequired is returned when a cancellation has no reason.
	ErrCancelReasonRequired = newError(ErrValidation, "cancellation reason is required")

	// ErrInvalidFare is returned for a fare with negative components or no total.
	ErrInvalidFare = newError(ErrValidation, "invalid fare")

	// ErrInvalidRating is returned when a rating is outside 1..5.
	ErrInvalidRating = newError(ErrValidation, "rating must be between 1 and 5")

	// ErrCommentTooLong is returned for review comments over the limit.
	ErrCommentTooLong = newError(ErrValidation, "comment must be at most 500 characters")

	// ErrInvalidTag is returned for a tag outside the review vocabulary.
	ErrInvalidTag = newError(ErrValidation, "invalid review tag")

	// ErrRideNotCompleted is returned when reviewing or paying for an unfinished ride.
	ErrRideNotCompleted = newError(ErrValidation, "ride is not completed")

	// ErrInvalidDriverStatus is returned for statuses a driver may not set directly.
	ErrInvalidDriverStatus = newError(ErrValidation, "driver status must be online or offline")

	// ErrInvalidEmail is returned for a malformed email address.
	ErrInvalidEmail = newError(ErrValidation, "invalid email")

	// ErrMissingCredential is returned when neither clerk id nor email is given.
	ErrMissingCredential = newError(ErrValidation, "clerkId or email is required")

	// ErrReferenceMismatch is returned when a confirmation names another charge.
	ErrReferenceMismatch = newError(ErrValidation, "payment reference does not match ride payment")

	// ErrInvalidWebhook is returned for webhook payloads failing verification.
	ErrInvalidWebhook = newError(ErrValidation, "invalid webhook payload or signature")

	// ErrInvalidToken is returned for a missing, malformed or expired token.
	ErrInvalidToken = newError(ErrAuthentication, "invalid or expired token")

	// ErrUnknownIdentity is returned when a valid token names no rider or driver.
	ErrUnknownIdentity = newError(ErrAuthentication, "token does not resolve to a rider or driver")

	// ErrRiderInactive is returned when an inactive rider requests a ride.
	ErrRiderInactive = newError(ErrForbidden, "rider account is inactive")

	// ErrDriverNotEligible is returned when a driver is offline, inactive or drives another ride type.
	ErrDriverNotEligible = newError(ErrForbidden, "driver is not eligible to accept this ride")

	// ErrNotRideParty is returned when the caller is neither rider nor assigned driver.
	ErrNotRideParty = newError(ErrForbidden, "not a party to this ride")

	// ErrActorNotAllowed is returned when the caller's role may not perform the transition.
	ErrActorNotAllowed = newError(ErrForbidden, "actor is not allowed to perform this transition")

	// ErrSystemOnly is returned for operations reserved for internal callers.
	ErrSystemOnly = newError(ErrForbidden, "operation requires a system actor")

	// ErrDriverSuspended is returned when a suspended driver changes status.
	ErrDriverSuspended = newError(ErrForbidden, "driver is suspended")

	// ErrRideNotFound is returned when a ride does not exist.
	ErrRideNotFound = newError(ErrNotFound, "ride not found")

	// ErrRiderNotFound is returned when a rider does not exist.
	ErrRiderNotFound = newError(ErrNotFound, "rider not found")

	// ErrDriverNotFound is returned when a driver does not exist.
	ErrDriverNotFound = newError(ErrNotFound, "driver not found")

	// ErrIdentityNotFound is returned when login names no rider or driver.
	ErrIdentityNotFound = newError(ErrNotFound, "user not found")

	// ErrPaymentNotFound is returned when a ride has no payment.
	ErrPaymentNotFound = newError(ErrNotFound, "payment not found")

	// ErrReviewNotFound is returned when a review does not exist.
	ErrReviewNotFound = newError(ErrNotFound, "review not found")

	// ErrRideAlreadyTaken is returned to every driver but the one who accepted first.
	ErrRideAlreadyTaken = newError(ErrConflict, "ride has already been accepted by another driver")

	// ErrConcurrentUpdate is returned when the ride changed between read and write.
	ErrConcurrentUpdate = newError(ErrConflict, "ride was updated concurrently")

	// ErrFareFrozen is returned when mutating the fare of a completed ride.
	ErrFareFrozen = newError(ErrConflict, "fare is frozen")

	// ErrDuplicateReview is returned for a second review of the same ride by the same reviewer.
	ErrDuplicateReview = newError(ErrConflict, "ride already reviewed by this user")

	// ErrAlreadyRegistered is returned when signup collides with an existing account.
	ErrAlreadyRegistered = newError(ErrConflict, "account already exists")

	// ErrAlreadyPaid is returned when creating an intent for a settled ride.
	ErrAlreadyPaid = newError(ErrConflict, "ride is already paid")

	// ErrDriverOnRide is returned when a busy driver changes status.
	ErrDriverOnRide = newError(ErrConflict, "driver has an active ride")

	// ErrUseAccept is returned when requested->accepted is attempted as a status update.
	ErrUseAccept = newError(ErrInvalidTransition, "rides are accepted through the accept operation")
)
