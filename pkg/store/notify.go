package store

import "sync"

// Change notification for feed subscribers: a channel that is closed on the
// next store mutation (append or receipt write). Waiters select on the
// current channel, wake when it closes, and call ChangeSignal again for the
// next generation. Writers never block on readers.
var (
	notifyMu sync.Mutex
	notifyCh = make(chan struct{})
)

// ChangeSignal returns a channel closed on the next store change.
func ChangeSignal() <-chan struct{} {
	notifyMu.Lock()
	defer notifyMu.Unlock()
	return notifyCh
}

func notifyChange() {
	notifyMu.Lock()
	close(notifyCh)
	notifyCh = make(chan struct{})
	notifyMu.Unlock()
}
