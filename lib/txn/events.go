package txn

import (
	"fmt"

	"github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/VictoriaMetrics/metrics"
)

// EventType identifies a lifecycle signal of a transaction
type EventType int

const (
	EventAttempt   EventType = iota // a new try starts; Tries is its number
	EventConflict                   // the store rejected the write; a retry follows
	EventChange                     // the operation changed the document; Changes is set
	EventReplace                    // the operation returned a new document; Doc is the replacement, Previous the original
	EventIgnore                     // the operation finished after the transaction ended
	EventCancel                     // Cancel was called
	EventDone                       // terminal: success, Doc is the final document
	EventExhausted                  // terminal: MaxTries reached
	EventTimeout                    // terminal: the operation did not finish in time
	EventError                      // terminal: Err is the cause
)

func (t EventType) String() string {
	switch t {
	case EventAttempt:
		return "attempt"
	case EventConflict:
		return "conflict"
	case EventChange:
		return "change"
	case EventReplace:
		return "replace"
	case EventIgnore:
		return "ignore"
	case EventCancel:
		return "cancel"
	case EventDone:
		return "done"
	case EventExhausted:
		return "exhausted"
	case EventTimeout:
		return "timeout"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Terminal reports whether the event ends the transaction
func (t EventType) Terminal() bool {
	switch t {
	case EventDone, EventExhausted, EventTimeout, EventError, EventCancel:
		return true
	}
	return false
}

// Event is a lifecycle signal delivered to Config.Observer
type Event struct {
	Type     EventType
	Txn      string // name of the transaction
	Tries    int
	Doc      doc.Document
	Previous doc.Document
	Changes  doc.Changes
	Err      error
}

func (e Event) String() string {
	switch e.Type {
	case EventChange:
		return fmt.Sprintf("%s %s: %s", e.Txn, e.Type, e.Changes)
	case EventError:
		return fmt.Sprintf("%s %s: %v", e.Txn, e.Type, e.Err)
	default:
		return fmt.Sprintf("%s %s (try %d)", e.Txn, e.Type, e.Tries)
	}
}

// countEvent increments the metrics counter of the event type
func countEvent(t EventType) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dtxn_txn_events_total{type=%q}`, t)).Inc()
}
