package timetable

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/catechism/core"
)

// Slot types
const (
	SlotLesson        = "lesson"
	SlotExam          = "exam"
	SlotLessonAndExam = "lesson_and_exam"
)

// Session units
const (
	HalfUnit = 0.5
	FullUnit = 1.0
)

var SlotTypes = []string{SlotLesson, SlotExam, SlotLessonAndExam}

// DateLayout is the wire format of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day, always in UTC.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Date())
}

func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return Date{}, errors.Wrapf(err, "parsing date %q", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*d = Date{}
		return nil
	}
	return d.UnmarshalText([]byte(strings.Trim(s, `"`)))
}

// Scan implements sql.Scanner.
func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = DateOf(v)
	case []byte:
		return d.UnmarshalText(v)
	case string:
		return d.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", value)
	}
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

// Key identifies a timetable: one grade in one academic year.
type Key struct {
	GradeID int `json:"gradeId" query:"gradeId" yaml:"gradeId" validate:"required,gt=0"`
	YearID  int `json:"yearId" query:"yearId" yaml:"yearId" validate:"required,gt=0"`
}

func (k Key) String() string {
	return fmt.Sprintf("grade=%d year=%d", k.GradeID, k.YearID)
}

func (k Key) check() error {
	var flds []core.FieldError
	if k.GradeID <= 0 {
		flds = append(flds, core.FieldError{Field: "gradeId", Error: "gradeId must be greater than 0"})
	}
	if k.YearID <= 0 {
		flds = append(flds, core.FieldError{Field: "yearId", Error: "yearId must be greater than 0"})
	}
	if flds != nil {
		return core.NewValidationError(ErrInvalidKey, flds...)
	}
	return nil
}

type AcademicYear struct {
	ID        int    `json:"id" db:"id" yaml:"id"`
	Name      string `json:"name" db:"name" yaml:"name"`
	StartDate Date   `json:"startDate" db:"start_date" yaml:"startDate"`
}

// Lesson is one curriculum item. Lessons of a Key are ordered by curriculum position.
type Lesson struct {
	ID           int         `json:"id" db:"id" yaml:"id"`
	Name         string      `json:"name" db:"name" yaml:"name"`
	SlotType     string      `json:"slotType" db:"slot_type" yaml:"slotType"`
	ExamName     null.String `json:"examName" db:"exam_name" yaml:"examName"`
	SessionUnits float64     `json:"sessionUnits" db:"session_units" yaml:"sessionUnits"`
}

func (l Lesson) IsHalf() bool { return l.SessionUnits == HalfUnit }

// HasExam reports whether the lesson carries an exam annotation.
func (l Lesson) HasExam() bool {
	return (l.SlotType == SlotExam || l.SlotType == SlotLessonAndExam) && l.ExamName.Valid && l.ExamName.String != ""
}

func (l Lesson) validate(idx int) []core.FieldError {
	var flds []core.FieldError
	prefix := fmt.Sprintf("lessons[%d].", idx)
	if l.ID <= 0 {
		flds = append(flds, core.FieldError{Field: prefix + "id", Error: "id must be greater than 0"})
	}
	if core.CleanString(l.Name) == "" {
		flds = append(flds, core.FieldError{Field: prefix + "name", Error: "this field is required"})
	}
	validSlot := false
	for _, st := range SlotTypes {
		if l.SlotType == st {
			validSlot = true
			break
		}
	}
	if !validSlot {
		flds = append(flds, core.FieldError{Field: prefix + "slotType", Error: "slotType must be one of " + strings.Join(SlotTypes, ", ")})
	}
	if l.SessionUnits != HalfUnit && l.SessionUnits != FullUnit {
		flds = append(flds, core.FieldError{Field: prefix + "sessionUnits", Error: "sessionUnits must be 0.5 or 1"})
	}
	return flds
}

// CalendarSession is one schedulable class meeting, with a capacity of one session unit.
type CalendarSession struct {
	ID            int         `json:"id" db:"id" yaml:"id"`
	Date          Date        `json:"date" db:"date" yaml:"date"`
	OrderSchedule int         `json:"orderSchedule" db:"order_schedule" yaml:"orderSchedule"`
	Name          null.String `json:"name" db:"name" yaml:"name"`
}

// MappingResult assigns a lesson (or a note) to the session at OrderSchedule.
// A session holds two results when it receives a pair of half-unit lessons.
type MappingResult struct {
	OrderSchedule int      `json:"orderSchedule" db:"order_schedule" yaml:"orderSchedule"`
	LessonID      null.Int `json:"lessonId" db:"lesson_id" yaml:"lessonId"`
	Note          string   `json:"note" db:"note" yaml:"note"`
}

// Activities are the user-declared notes of a selection, keyed by CalendarSession ID.
// Manual notes reserve a whole session. Additional notes fill the free half
// of a session taken by an unpaired half-unit lesson.
type Activities struct {
	Manual     map[int]string `json:"manual" yaml:"manual"`
	Additional map[int]string `json:"additional" yaml:"additional"`
}

// ManualNote returns the trimmed manual note of a session.
func (a Activities) ManualNote(sessionID int) string {
	if a.Manual == nil {
		return ""
	}
	return core.CleanString(a.Manual[sessionID])
}

func (a Activities) AdditionalNote(sessionID int) string {
	if a.Additional == nil {
		return ""
	}
	return core.CleanString(a.Additional[sessionID])
}

func NewActivities() Activities {
	return Activities{Manual: make(map[int]string), Additional: make(map[int]string)}
}

func (a Activities) clone() Activities {
	c := NewActivities()
	for k, v := range a.Manual {
		c.Manual[k] = v
	}
	for k, v := range a.Additional {
		c.Additional[k] = v
	}
	return c
}

// check rejects notes attached to sessions that are not part of the selection.
func (a Activities) check(sessions []CalendarSession) error {
	known := make(map[int]bool, len(sessions))
	for _, s := range sessions {
		known[s.ID] = true
	}
	var flds []core.FieldError
	for id := range a.Manual {
		if !known[id] {
			flds = append(flds, core.FieldError{Field: fmt.Sprintf("manual.%d", id), Error: ErrUnknownSession.Error()})
		}
	}
	for id := range a.Additional {
		if !known[id] {
			flds = append(flds, core.FieldError{Field: fmt.Sprintf("additional.%d", id), Error: ErrUnknownSession.Error()})
		}
	}
	if flds != nil {
		return core.NewValidationError(ErrUnknownSession, flds...)
	}
	return nil
}

// Submission is a timetable persisted for a Key. There is at most one per Key.
type Submission struct {
	ID          string          `json:"id"`
	Key         Key             `json:"key"`
	SubmittedBy string          `json:"submittedBy"`
	SubmittedAt time.Time       `json:"submittedAt"` // UTC
	Details     []MappingResult `json:"details"`
}

// Curriculum is everything needed to plan the timetable of a Key.
type Curriculum struct {
	Year     AcademicYear      `json:"year" yaml:"year"`
	GradeID  int               `json:"gradeId" yaml:"gradeId"`
	Lessons  []Lesson          `json:"lessons" yaml:"lessons"`
	Sessions []CalendarSession `json:"sessions" yaml:"sessions"`
}

func (c Curriculum) Key() Key { return Key{GradeID: c.GradeID, YearID: c.Year.ID} }

// Validate checks the curriculum is consistent before it gets stored.
func (c *Curriculum) Validate() error {
	c.Year.Name = core.CleanString(c.Year.Name)

	if err := c.Key().check(); err != nil {
		return err
	}

	var flds []core.FieldError
	if c.Year.StartDate.IsZero() {
		flds = append(flds, core.FieldError{Field: "year.startDate", Error: "this field is required"})
	}
	lessonIDs := make(map[int]bool, len(c.Lessons))
	for i, l := range c.Lessons {
		flds = append(flds, l.validate(i)...)
		if lessonIDs[l.ID] {
			flds = append(flds, core.FieldError{Field: fmt.Sprintf("lessons[%d].id", i), Error: "duplicate lesson id"})
		}
		lessonIDs[l.ID] = true
	}
	sessionIDs := make(map[int]bool, len(c.Sessions))
	orders := make(map[int]bool, len(c.Sessions))
	for i, s := range c.Sessions {
		prefix := fmt.Sprintf("sessions[%d].", i)
		if s.ID <= 0 {
			flds = append(flds, core.FieldError{Field: prefix + "id", Error: "id must be greater than 0"})
		}
		if sessionIDs[s.ID] {
			flds = append(flds, core.FieldError{Field: prefix + "id", Error: "duplicate session id"})
		}
		if orders[s.OrderSchedule] {
			flds = append(flds, core.FieldError{Field: prefix + "orderSchedule", Error: "duplicate orderSchedule"})
		}
		if s.Date.IsZero() {
			flds = append(flds, core.FieldError{Field: prefix + "date", Error: "this field is required"})
		}
		sessionIDs[s.ID] = true
		orders[s.OrderSchedule] = true
	}
	if flds != nil {
		return core.NewValidationError(ErrInvalidCurriculum, flds...)
	}
	return nil
}
