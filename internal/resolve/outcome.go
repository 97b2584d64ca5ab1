package resolve

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/goplus/depbuild/pkgs/manifest"
)

// Policy decides what a failed dependency means for the nodes depending
// on it.
type Policy int

const (
	// BestEffort isolates failures: siblings are still processed and
	// dependents are built anyway.
	BestEffort Policy = iota
	// Strict stops at the first failure and builds nothing further.
	Strict
)

func (p Policy) String() string {
	switch p {
	case BestEffort:
		return "best-effort"
	case Strict:
		return "strict"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy parses "best-effort" or "strict".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "best-effort", "":
		return BestEffort, nil
	case "strict":
		return Strict, nil
	}
	return 0, fmt.Errorf("unknown policy %q, want best-effort or strict", s)
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Status is the terminal state of a node.
type Status int

const (
	StatusFailed Status = iota
	StatusBuilt
	// StatusReused marks a repeated declaration that was not processed
	// again; Err carries the first occurrence's failure, if any.
	StatusReused
)

func (s Status) String() string {
	switch s {
	case StatusFailed:
		return "failed"
	case StatusBuilt:
		return "built"
	case StatusReused:
		return "reused"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the result of processing one declaration.
type Outcome struct {
	Node     string        `json:"node"`
	URL      string        `json:"url"`
	Ref      string        `json:"ref"`
	Path     string        `json:"path,omitempty"`
	Parent   string        `json:"parent,omitempty"` // empty for direct dependencies of the root
	Depth    int           `json:"depth"`
	Status   Status        `json:"status"`
	Err      error         `json:"-"`
	Digest   string        `json:"digest,omitempty"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the node is usable by its dependents.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Status != StatusFailed
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	type outcome Outcome
	var msg string
	if o.Err != nil {
		msg = o.Err.Error()
	}
	return json.Marshal(struct {
		outcome
		Error string `json:"error,omitempty"`
	}{outcome(o), msg})
}

// Failed returns the outcomes that are not OK.
func Failed(outcomes []Outcome) []Outcome {
	var failed []Outcome
	for _, o := range outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// EventKind identifies a step of the per-node state machine.
type EventKind int

const (
	EventFetch    EventKind = iota // about to fetch
	EventFetched                   // fetch succeeded
	EventResolve                   // nested manifest found, resolving children
	EventResolved                  // children processed, whatever their outcome
	EventBuild                     // about to run the build action
	EventBuilt                     // build action succeeded
	EventFailed                    // node failed; terminal
	EventReused                    // repeated declaration skipped; terminal
)

var eventNames = [...]string{
	EventFetch:    "fetch",
	EventFetched:  "fetched",
	EventResolve:  "resolve",
	EventResolved: "resolved",
	EventBuild:    "build",
	EventBuilt:    "built",
	EventFailed:   "failed",
	EventReused:   "reused",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is reported to Options.Observer as resolution progresses.
type Event struct {
	Kind  EventKind
	Node  string
	Key   manifest.Key
	Depth int
	Path  string
	Err   error
}

func (e Event) String() string {
	return e.Kind.String() + "(" + e.Node + ")"
}
