package errors

import "fmt"

var (
	ErrEmptySender      = fmt.Errorf("sender label is empty")
	ErrEmptyContent     = fmt.Errorf("message content is empty")
	ErrSendInFlight     = fmt.Errorf("a send is already in flight")
	ErrStoreUnavailable = fmt.Errorf("message store unavailable")
	ErrSessionInactive  = fmt.Errorf("session is not active")
	ErrUnknownChannel   = fmt.Errorf("unknown channel")
	ErrUnknownPolicy    = fmt.Errorf("unknown latency policy")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
)
