package custody

import (
	"errors"

	"github.com/congo-pay/custody/internal/ledger"
)

var (
	// ErrUnauthorized indicates the caller is not an owner.
	ErrUnauthorized = errors.New("caller is not an owner")

	// ErrAlreadyOwner indicates the principal already belongs to the owner set.
	ErrAlreadyOwner = errors.New("principal is already an owner")

	// ErrNotAnOwner indicates the principal to remove is not an owner.
	ErrNotAnOwner = errors.New("principal is not an owner")

	// ErrLastOwner indicates the removal would leave the vault without owners.
	ErrLastOwner = errors.New("cannot remove the last owner")

	// ErrInsufficientBalance indicates the custody balance does not cover the
	// requested amount. Nothing was transferred.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrTransferFailed indicates the adapter failed, refused or timed out.
	// No record was appended, so the call may be re-issued.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrIndexOutOfRange is returned when reading past the end of the ledger.
	ErrIndexOutOfRange = ledger.ErrIndexOutOfRange

	// ErrInvalidArgument indicates malformed input rejected before any check.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Code returns a stable machine-readable code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrAlreadyOwner):
		return "ALREADY_OWNER"
	case errors.Is(err, ErrNotAnOwner):
		return "NOT_AN_OWNER"
	case errors.Is(err, ErrLastOwner):
		return "LAST_OWNER"
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ErrTransferFailed):
		return "TRANSFER_FAILED"
	case errors.Is(err, ErrIndexOutOfRange):
		return "INDEX_OUT_OF_RANGE"
	case errors.Is(err, ErrInvalidArgument):
		return "INVALID_ARGUMENT"
	default:
		return "INTERNAL"
	}
}
