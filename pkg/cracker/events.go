/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: events.go
Description: Instrumentation hooks fired while cracking. Observers see enter, exit,
exception and analyzer events in strict nesting order and cannot affect the pass.
*/

package cracker

import (
	"sync"

	"github.com/kleascm/akaylee-cracker/pkg/dom"
	"github.com/sirupsen/logrus"
)

// Observer receives cracking events. Positions are absolute bit offsets.
type Observer interface {
	EnterNode(e dom.Element, position uint64)
	ExitNode(e dom.Element, position uint64)
	NodeException(e dom.Element, position uint64, err error)
	AnalyzerInvoked(e dom.Element, position uint64)
}

// EventType identifies a recorded event
type EventType string

const (
	EventEnter     EventType = "enter"
	EventExit      EventType = "exit"
	EventException EventType = "exception"
	EventAnalyzer  EventType = "analyzer"
)

// Event is a single recorded observer callback
type Event struct {
	Type     EventType
	Path     string
	Position uint64
	Err      error
}

// RecordingObserver keeps every event in order, used by validators and tests
type RecordingObserver struct {
	mu     sync.Mutex
	events []Event
}

// NewRecordingObserver creates an empty recorder
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

func (r *RecordingObserver) add(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// EnterNode records an enter event
func (r *RecordingObserver) EnterNode(e dom.Element, position uint64) {
	r.add(Event{Type: EventEnter, Path: dom.FullName(e), Position: position})
}

// ExitNode records an exit event
func (r *RecordingObserver) ExitNode(e dom.Element, position uint64) {
	r.add(Event{Type: EventExit, Path: dom.FullName(e), Position: position})
}

// NodeException records a failure event
func (r *RecordingObserver) NodeException(e dom.Element, position uint64, err error) {
	r.add(Event{Type: EventException, Path: dom.FullName(e), Position: position, Err: err})
}

// AnalyzerInvoked records an analyzer event
func (r *RecordingObserver) AnalyzerInvoked(e dom.Element, position uint64) {
	r.add(Event{Type: EventAnalyzer, Path: dom.FullName(e), Position: position})
}

// Events returns a copy of the recorded events
func (r *RecordingObserver) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset clears the recorded events
func (r *RecordingObserver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// LoggingObserver writes every event to a logrus logger at trace level,
// exceptions at debug
type LoggingObserver struct {
	logger logrus.FieldLogger
}

// NewLoggingObserver creates an observer logging through logger
func NewLoggingObserver(logger logrus.FieldLogger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

func (l *LoggingObserver) fields(e dom.Element, position uint64) *logrus.Entry {
	return l.logger.WithFields(logrus.Fields{
		"element":  dom.FullName(e),
		"type":     dom.TypeName(e),
		"position": position,
	})
}

// EnterNode logs node entry
func (l *LoggingObserver) EnterNode(e dom.Element, position uint64) {
	l.fields(e, position).Trace("Entering element")
}

// ExitNode logs node exit
func (l *LoggingObserver) ExitNode(e dom.Element, position uint64) {
	l.fields(e, position).Trace("Cracked element")
}

// NodeException logs a node failure
func (l *LoggingObserver) NodeException(e dom.Element, position uint64, err error) {
	l.fields(e, position).WithError(err).Debug("Element failed to crack")
}

// AnalyzerInvoked logs analyzer dispatch
func (l *LoggingObserver) AnalyzerInvoked(e dom.Element, position uint64) {
	l.fields(e, position).Debug("Running analyzer")
}
