package cron

// EventType identifies a scheduler event.
type EventType string

const (
	EventStarted      EventType = "started"
	EventStopped      EventType = "stopped"
	EventJobStarted   EventType = "job_started"
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
	EventJobTimedOut  EventType = "job_timed_out"
)

// Event is a scheduler notification for monitoring. Delivery is
// best-effort: a subscriber that stops draining its channel loses
// events rather than blocking the engine.
type Event struct {
	Type        EventType
	JobID       string
	ExecutionID string
	Err         string
}

// eventBuffer is the per-subscriber channel capacity.
const eventBuffer = 64

// Subscribe returns a channel of scheduler events. The channel is
// never closed; abandoned subscribers simply stop receiving.
func (m *Manager) Subscribe() <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Event, eventBuffer)
	m.subs = append(m.subs, ch)
	return ch
}

// publish delivers an event to all subscribers without blocking.
func (m *Manager) publish(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishLocked(ev)
}

// publishLocked is publish for callers already holding m.mu. Sends are
// non-blocking, so holding the lock across them is safe.
func (m *Manager) publishLocked(ev Event) {
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
