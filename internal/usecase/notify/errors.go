package notify

import "errors"

// FailureNoChannels is the failure reason recorded when no channel could be attempted.
const FailureNoChannels = "No valid channels or recipients"

var (
	// ErrAlreadyDispatched is returned when a notification that is in flight or
	// already carries a terminal status is handed to the Dispatcher again.
	ErrAlreadyDispatched = errors.New("notification already dispatched")

	// ErrShuttingDown is returned by Dispatch after Shutdown has been called.
	ErrShuttingDown = errors.New("dispatcher is shutting down")

	// ErrNilNotification is returned when Dispatch receives a nil notification.
	ErrNilNotification = errors.New("notification is nil")
)

var (
	// ErrNoSender is returned by Redeliver for a channel with no registered sender.
	ErrNoSender = errors.New("no sender registered for channel")

	// ErrNotContactable is returned by Redeliver when no recipient can be reached on the channel.
	ErrNotContactable = errors.New("no contactable recipient on channel")
)
