// Package playback provides the narration controller: a page cursor over an
// open document driven by a single background narration loop.
package playback

// State represents the playback state.
type State int

const (
	StateStopped State = iota // Nothing is being read
	StatePlaying              // The narration loop is reading pages
	StatePaused               // The narration loop waits for Play or Stop
	StateError                // The narration loop failed; see Status.Err
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the controller.
type Status struct {
	State State
	Path  string // Selected document ("" when none)
	Page  int    // Current page index, 0-based
	Pages int    // Total pages (0 when no document is selected)
	Text  string // Text of the page last shown
	Rate  int    // Reading rate in words per minute
	Err   error  // Last failure, cleared by Play, Stop and Select
}

// HasDocument reports whether a document is selected.
func (s Status) HasDocument() bool {
	return s.Path != ""
}

// CanPlay reports whether Play would start or resume narration.
func (s Status) CanPlay() bool {
	return s.HasDocument() && s.State != StatePlaying
}

// CanPause reports whether Pause is allowed.
func (s Status) CanPause() bool {
	return s.State == StatePlaying
}

// CanStop reports whether Stop has anything to stop.
func (s Status) CanStop() bool {
	return s.State == StatePlaying || s.State == StatePaused
}

// CanSelect reports whether a new document may be selected.
func (s Status) CanSelect() bool {
	return s.State == StateStopped || s.State == StateError
}

// CanNext reports whether Next would move the cursor.
func (s Status) CanNext() bool {
	return s.HasDocument() && s.Page < s.Pages-1
}

// CanPrev reports whether Prev would move the cursor.
func (s Status) CanPrev() bool {
	return s.HasDocument() && s.Page > 0
}
