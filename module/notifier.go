package module

// Notifier wakes up a worker routine when new work is available. Notifications
// are coalesced: notifying several times before the worker reads the channel
// results in a single wake-up. Notifiers can be passed by value.
type Notifier struct {
	notifier chan struct{}
}

func NewNotifier() Notifier {
	return Notifier{make(chan struct{}, 1)}
}

// Notify never blocks; if a notification is already pending it is a no-op.
func (n Notifier) Notify() {
	select {
	case n.notifier <- struct{}{}:
	default:
	}
}

// Channel returns a channel for receiving notifications
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}
