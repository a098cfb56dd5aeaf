package domain

import "errors"

// Domain validation errors. Callers wrap them with context via fmt.Errorf("%w: ...").
var (
	ErrInvalidID              = errors.New("invalid id")
	ErrInvalidName            = errors.New("invalid name")
	ErrInvalidState           = errors.New("invalid connection state")
	ErrInvalidMemberStatus    = errors.New("invalid group member status")
	ErrFollowupDateRequired   = errors.New("followup date is required for future follow up")
	ErrIncompletePlacement    = errors.New("group placement requires group, role, and member status")
	ErrInvalidAttributeValues = errors.New("invalid attribute values")
	ErrInvalidConnectorPolicy = errors.New("invalid connector policy")
	ErrInvalidActivityType    = errors.New("invalid activity type")
	ErrInvalidSort            = errors.New("invalid sort property")
	ErrInvalidViewMode        = errors.New("invalid view mode")
)

// IsValidationError reports whether err wraps one of the domain validation errors.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidID,
		ErrInvalidName,
		ErrInvalidState,
		ErrInvalidMemberStatus,
		ErrFollowupDateRequired,
		ErrIncompletePlacement,
		ErrInvalidAttributeValues,
		ErrInvalidConnectorPolicy,
		ErrInvalidActivityType,
		ErrInvalidSort,
		ErrInvalidViewMode,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
