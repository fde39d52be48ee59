// internal/eventhub/hub.go
package eventhub

import "sync"

// Broadcaster delivers events to whatever renders the document
type Broadcaster interface {
	BroadcastEvent(eventType string, payload interface{})
}

// Event names
const (
	HistoryChanged = "history:changed"
	AIRecorded     = "ai:recorded"
	AIReverted     = "ai:reverted"
	LockConflict   = "lock:conflict"
	SessionClosed  = "session:closed"
)

// EventHub fans session events out to a broadcaster. Without one, every
// emit is a no-op.
type EventHub struct {
	mu          sync.RWMutex
	broadcaster Broadcaster
}

// New creates an EventHub with an optional broadcaster
func New(b Broadcaster) *EventHub {
	return &EventHub{broadcaster: b}
}

// SetBroadcaster swaps the broadcaster
func (h *EventHub) SetBroadcaster(b Broadcaster) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcaster = b
}

func (h *EventHub) emit(eventName string, payload interface{}) {
	if h == nil {
		return
	}
	h.mu.RLock()
	b := h.broadcaster
	h.mu.RUnlock()

	if b != nil {
		b.BroadcastEvent(eventName, payload)
	}
}

// Emit sends an arbitrary event
func (h *EventHub) Emit(eventName string, payload interface{}) {
	h.emit(eventName, payload)
}

// History events
type HistoryChangedEvent struct {
	SessionID string `json:"sessionId"`
	Action    string `json:"action"`
	CanUndo   bool   `json:"canUndo"`
	CanRedo   bool   `json:"canRedo"`
	Depth     int    `json:"depth"`
}

func (h *EventHub) EmitHistoryChanged(event HistoryChangedEvent) {
	h.emit(HistoryChanged, event)
}

// AI change log events
type AIRecordedEvent struct {
	SessionID    string   `json:"sessionId"`
	RecordID     string   `json:"recordId"`
	Kind         string   `json:"kind"`
	SuggestionID string   `json:"suggestionId,omitempty"`
	Paths        []string `json:"paths"`
}

func (h *EventHub) EmitAIRecorded(event AIRecordedEvent) {
	h.emit(AIRecorded, event)
}

type AIRevertedEvent struct {
	SessionID string `json:"sessionId"`
	RecordID  string `json:"recordId"`
	InHistory bool   `json:"inHistory"`
}

func (h *EventHub) EmitAIReverted(event AIRevertedEvent) {
	h.emit(AIReverted, event)
}

// Lock contention, shown as "something else is editing this"
type LockConflictEvent struct {
	SessionID string   `json:"sessionId"`
	Paths     []string `json:"paths"`
	Action    string   `json:"action"`
}

func (h *EventHub) EmitLockConflict(event LockConflictEvent) {
	h.emit(LockConflict, event)
}

func (h *EventHub) EmitSessionClosed(sessionID string) {
	h.emit(SessionClosed, map[string]interface{}{
		"sessionId": sessionID,
	})
}
