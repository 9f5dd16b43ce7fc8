package playback

import "time"

// EventType represents a playback event type.
type EventType int

const (
	EventDocumentOpened    EventType = iota // A document was selected
	EventDocumentReloaded                   // The selected document changed on disk and was reopened
	EventPageShown                          // Page text should replace the visible text
	EventUtteranceStarted                   // Speech for the shown page started
	EventUtteranceFinished                  // Speech for the shown page completed
	EventStateChanged                       // Playback state changed
	EventRateChanged                        // Reading rate changed
	EventFinished                           // The last page was read
	EventFailed                             // An operation or the narration loop failed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventDocumentOpened:
		return "document_opened"
	case EventDocumentReloaded:
		return "document_reloaded"
	case EventPageShown:
		return "page_shown"
	case EventUtteranceStarted:
		return "utterance_started"
	case EventUtteranceFinished:
		return "utterance_finished"
	case EventStateChanged:
		return "state_changed"
	case EventRateChanged:
		return "rate_changed"
	case EventFinished:
		return "finished"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Seq    uint64 // Increases by one per event
	Type   EventType
	Status Status // Controller snapshot taken when the event was queued
	Err    error  // Set for EventFailed
	Time   time.Time
}
