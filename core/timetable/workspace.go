package timetable

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/catechism/core"
)

// Workspace holds the state of one planning session: the selected Key, its loaded inputs,
// the user-declared activities and the last mapping.
// Nothing is persisted until Submit succeeds.
type Workspace struct {
	src Source

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc

	key        Key
	lessons    []Lesson
	sessions   []CalendarSession
	acts       Activities
	results    []MappingResult
	unassigned []Lesson
}

func NewWorkspace(src Source) *Workspace {
	return &Workspace{src: src, acts: NewActivities()}
}

// Select loads the inputs of key, discarding the state of the previous selection.
// A load still in flight is cancelled, and a load superseded by a newer Select returns
// ErrStaleSelection without touching the state.
// When loading fails the inputs stay empty, which keeps auto-mapping disabled.
func (w *Workspace) Select(ctx context.Context, key Key) error {
	w.mu.Lock()
	w.generation++
	gen := w.generation
	if w.cancel != nil {
		w.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.reset(key)
	w.mu.Unlock()

	sel, err := Fetch(fetchCtx, w.src, key)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation {
		return ErrStaleSelection
	}
	cancel()
	w.cancel = nil
	if err != nil {
		return errors.Wrapf(err, "loading %s", key)
	}
	w.lessons = sel.Lessons
	w.sessions = sel.Sessions
	return nil
}

func (w *Workspace) reset(key Key) {
	w.key = key
	w.lessons = nil
	w.sessions = nil
	w.acts = NewActivities()
	w.results = nil
	w.unassigned = nil
}

func (w *Workspace) Key() Key {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.key
}

func (w *Workspace) Lessons() []Lesson {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Lesson(nil), w.lessons...)
}

func (w *Workspace) Sessions() []CalendarSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]CalendarSession(nil), w.sessions...)
}

func (w *Workspace) Activities() Activities {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.acts.clone()
}

func (w *Workspace) Capacity() Capacity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return NewCapacity(w.lessons, w.sessions, w.acts)
}

func (w *Workspace) hasSession(id int) bool {
	for _, s := range w.sessions {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (w *Workspace) unknownSession(field string) error {
	return core.NewValidationError(ErrUnknownSession, core.FieldError{Field: field, Error: ErrUnknownSession.Error()})
}

// SetManualActivity reserves a session with a note; a blank note frees it.
// Any previous mapping is discarded.
func (w *Workspace) SetManualActivity(sessionID int, note string) (Capacity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.hasSession(sessionID) {
		return NewCapacity(w.lessons, w.sessions, w.acts), w.unknownSession("manual")
	}
	if note = core.CleanString(note); note == "" {
		delete(w.acts.Manual, sessionID)
	} else {
		w.acts.Manual[sessionID] = note
	}
	w.results, w.unassigned = nil, nil
	return NewCapacity(w.lessons, w.sessions, w.acts), nil
}

// SetAdditionalActivity sets the note used next to an unpaired half-unit lesson.
func (w *Workspace) SetAdditionalActivity(sessionID int, note string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.hasSession(sessionID) {
		return w.unknownSession("additional")
	}
	if note = core.CleanString(note); note == "" {
		delete(w.acts.Additional, sessionID)
	} else {
		w.acts.Additional[sessionID] = note
	}
	w.results, w.unassigned = nil, nil
	return nil
}

// SetActivities replaces all the activities at once.
func (w *Workspace) SetActivities(acts Activities) (Capacity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := acts.check(w.sessions); err != nil {
		return NewCapacity(w.lessons, w.sessions, w.acts), err
	}
	w.acts = NewActivities()
	for id, note := range acts.Manual {
		if note = core.CleanString(note); note != "" {
			w.acts.Manual[id] = note
		}
	}
	for id, note := range acts.Additional {
		if note = core.CleanString(note); note != "" {
			w.acts.Additional[id] = note
		}
	}
	w.results, w.unassigned = nil, nil
	return NewCapacity(w.lessons, w.sessions, w.acts), nil
}

// AutoMap maps the loaded lessons onto the loaded sessions. It fails with ErrAutoMapDisabled while slots remain.
func (w *Workspace) AutoMap() ([]MappingResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !NewCapacity(w.lessons, w.sessions, w.acts).CanAutoMap() {
		return nil, ErrAutoMapDisabled
	}
	w.results, w.unassigned = AutoMap(w.sessions, w.lessons, w.acts)
	return append([]MappingResult(nil), w.results...), nil
}

func (w *Workspace) Results() []MappingResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]MappingResult(nil), w.results...)
}

// Unassigned returns the lessons the last mapping could not place.
func (w *Workspace) Unassigned() []Lesson {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Lesson(nil), w.unassigned...)
}

func (w *Workspace) Preview(mode PreviewMode) []PreviewRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Preview(w.results, w.sessions, w.lessons, mode)
}

// Submit hands the last mapping to gw. The mapping is kept when submission fails so it can be retried.
func (w *Workspace) Submit(ctx context.Context, gw Gateway) (string, error) {
	w.mu.Lock()
	key := w.key
	results := append([]MappingResult(nil), w.results...)
	w.mu.Unlock()

	if len(results) == 0 {
		return "", ErrNothingToSubmit
	}
	msg, err := gw.SubmitTimetable(ctx, key, results)
	if err != nil {
		return "", errors.Wrapf(err, "submitting %s", key)
	}
	return msg, nil
}
