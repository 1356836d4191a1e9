package timetable

import "errors"

var (
	ErrNotFound           = errors.New("timetable not found")
	ErrYearNotFound       = errors.New("academic year not found")
	ErrInvalidKey         = errors.New("invalid grade or academic year")
	ErrInvalidCurriculum  = errors.New("invalid curriculum")
	ErrUnknownSession     = errors.New("unknown calendar session")
	ErrUnknownLesson      = errors.New("unknown lesson")
	ErrAutoMapDisabled    = errors.New("auto-mapping is disabled until no slot remains")
	ErrNothingToSubmit    = errors.New("nothing to submit")
	ErrAlreadySubmitted   = errors.New("a timetable was already submitted for this grade and academic year")
	ErrYearStarted        = errors.New("the academic year has already started")
	ErrStaleSelection     = errors.New("selection changed before the data was loaded")
	ErrInvalidPreviewMode = errors.New("invalid preview mode")
)
