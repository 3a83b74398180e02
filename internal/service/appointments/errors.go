package appointments

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type InvalidProviderError struct{}

func (*InvalidProviderError) Error() string {
	return "You can only create appointments with providers"
}

type PastDateError struct{}

func (*PastDateError) Error() string {
	return "Past dates are not permitted"
}

type SlotUnavailableError struct{}

func (*SlotUnavailableError) Error() string {
	return "Appointment date is not available"
}

type NotFoundError struct{}

func (*NotFoundError) Error() string {
	return "Appointment not found"
}

type AlreadyCanceledError struct{}

func (*AlreadyCanceledError) Error() string {
	return "This appointment was already canceled"
}

type ForbiddenError struct{}

func (*ForbiddenError) Error() string {
	return "You don't have permission to cancel this appointment"
}

type TooLateToCancelError struct{}

func (*TooLateToCancelError) Error() string {
	return "You can only cancel appointments 2 hours in advance"
}

// IdempotencyConflictError means the idempotency key was already used for a
// booking with a different provider or date.
type IdempotencyConflictError struct{}

func (*IdempotencyConflictError) Error() string {
	return "idempotency key already used for a different appointment"
}
