// Package mock provides a scriptable media element for tests.
//
// Events are never emitted on their own. Tests drive an element with Emit,
// which calls the handler on the caller's goroutine, standing in for the
// element's dispatcher.
package mock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/famish99/musicradio/internal/backends"
)

// Factory creates Elements and records every call made on them
type Factory struct {
	mu       sync.Mutex
	elements []*Element
	calls    []string
	playErr  error
	loadErr  error
	total    time.Duration
}

// NewFactory creates an empty factory
func NewFactory() *Factory {
	return &Factory{}
}

// New satisfies backends.Factory
func (f *Factory) New() backends.MediaElement {
	f.mu.Lock()
	defer f.mu.Unlock()

	e := &Element{
		factory: f,
		id:      len(f.elements) + 1,
		playErr: f.playErr,
		loadErr: f.loadErr,
		total:   f.total,
	}
	f.elements = append(f.elements, e)
	return e
}

// SetPlayErr makes Play fail on elements created from now on
func (f *Factory) SetPlayErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playErr = err
}

// SetLoadErr makes Load fail on elements created from now on
func (f *Factory) SetLoadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadErr = err
}

// SetTotal sets the duration reported by Timing for new elements
func (f *Factory) SetTotal(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total = d
}

// Elements returns every element created so far
func (f *Factory) Elements() []*Element {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Element, len(f.elements))
	copy(out, f.elements)
	return out
}

// Last returns the most recently created element, or nil
func (f *Factory) Last() *Element {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.elements) == 0 {
		return nil
	}
	return f.elements[len(f.elements)-1]
}

// Live counts elements that have not been released
func (f *Factory) Live() int {
	f.mu.Lock()
	elements := make([]*Element, len(f.elements))
	copy(elements, f.elements)
	f.mu.Unlock()

	n := 0
	for _, e := range elements {
		if !e.Released() {
			n++
		}
	}
	return n
}

// Calls returns the ordered call log, e.g. "1:load", "1:pause", "2:load"
func (f *Factory) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *Factory) record(id int, call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%d:%s", id, call))
}

// Element is a scriptable backends.MediaElement
type Element struct {
	factory *Factory
	id      int

	mu       sync.Mutex
	src      backends.Source
	preload  backends.Preload
	handler  backends.Handler
	loaded   bool
	playing  bool
	released bool
	plays    int
	pauses   int
	playErr  error
	loadErr  error
	elapsed  time.Duration
	total    time.Duration
}

// ID is the 1-based creation order of the element
func (e *Element) ID() int { return e.id }

func (e *Element) Load(src backends.Source, preload backends.Preload, h backends.Handler) error {
	e.factory.record(e.id, "load")

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return errors.New("element released")
	}
	if e.loadErr != nil {
		return e.loadErr
	}
	e.src = src
	e.preload = preload
	e.handler = h
	e.loaded = true
	return nil
}

func (e *Element) Play() error {
	e.factory.record(e.id, "play")

	e.mu.Lock()
	defer e.mu.Unlock()
	e.plays++
	if e.playErr != nil {
		return e.playErr
	}
	e.playing = true
	return nil
}

func (e *Element) Pause() error {
	e.factory.record(e.id, "pause")

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauses++
	e.playing = false
	return nil
}

func (e *Element) Release() error {
	e.factory.record(e.id, "release")

	e.mu.Lock()
	defer e.mu.Unlock()
	e.released = true
	e.playing = false
	e.handler = nil
	return nil
}

func (e *Element) Timing() (time.Duration, time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.elapsed, e.total
}

// Emit delivers an event to the handler. Returns false if the element is
// released or was never loaded.
func (e *Element) Emit(t backends.EventType) bool {
	return e.deliver(backends.Event{Type: t})
}

// EmitError delivers an EventError carrying err
func (e *Element) EmitError(err error) bool {
	return e.deliver(backends.Event{Type: backends.EventError, Err: err})
}

func (e *Element) deliver(ev backends.Event) bool {
	e.mu.Lock()
	h := e.handler
	released := e.released
	if ev.Type == backends.EventEnded || ev.Type == backends.EventError {
		e.playing = false
	}
	e.mu.Unlock()

	if released || h == nil {
		return false
	}
	h(ev)
	return true
}

// SetPlayErr changes the error returned by later Play calls
func (e *Element) SetPlayErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playErr = err
}

// SetElapsed sets the position reported by Timing
func (e *Element) SetElapsed(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.elapsed = d
}

// Source returns the source passed to Load
func (e *Element) Source() backends.Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// Preload returns the preload hint passed to Load
func (e *Element) Preload() backends.Preload {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.preload
}

// Loaded reports whether Load succeeded
func (e *Element) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// Playing reports whether the element is currently playing
func (e *Element) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Released reports whether Release was called
func (e *Element) Released() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released
}

// Plays counts Play calls, including failed ones
func (e *Element) Plays() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plays
}

// Pauses counts Pause calls
func (e *Element) Pauses() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pauses
}

var _ backends.MediaElement = (*Element)(nil)
