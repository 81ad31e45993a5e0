package domain

import "errors"

// ErrSubscriptionCapExceeded is returned when a subscribe request would
// push a chat's active subscriber count past the configured cap. It is
// reported to the caller and must not be retried.
var ErrSubscriptionCapExceeded = errors.New("notification subscriber cap exceeded")
