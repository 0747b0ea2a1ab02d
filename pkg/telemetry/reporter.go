package telemetry

import (
	"sync"
	"time"
)

// Reporter receives telemetry events. Report must not block.
type Reporter interface {
	Report(*Event)
}

// ReportFunc is func type of Reporter.
type ReportFunc func(*Event)

// Report implements Reporter.
func (f ReportFunc) Report(e *Event) {
	f(e)
}

// Emitter stamps events of one session.
type Emitter struct {
	Session  string
	Reporter Reporter
}

// NewEmitter creates an Emitter with a new session id.
func NewEmitter(r Reporter) *Emitter {
	return &Emitter{Session: NewSessionID(), Reporter: r}
}

// Emit reports an event. A nil Emitter or Reporter discards it.
func (e *Emitter) Emit(kind string, fields map[string]interface{}) {
	if e == nil || e.Reporter == nil {
		return
	}
	e.Reporter.Report(&Event{Session: e.Session, Kind: kind, Time: time.Now(), Fields: fields})
}

// Recorder keeps reported events in memory.
type Recorder struct {
	lock   sync.Mutex
	events []*Event
}

// Report implements Reporter.
func (r *Recorder) Report(e *Event) {
	r.lock.Lock()
	r.events = append(r.events, e)
	r.lock.Unlock()
}

// Events returns reported events.
func (r *Recorder) Events() []*Event {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]*Event(nil), r.events...)
}

// Kinds returns the kinds of reported events in order.
func (r *Recorder) Kinds() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	kinds := make([]string, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}
