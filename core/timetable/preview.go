package timetable

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/catechism/core"
)

// OtherActivity is shown for a session that has neither a lesson nor a note.
const OtherActivity = "Other activity"

type PreviewMode string

const (
	// PreviewSeparate shows one row per MappingResult.
	PreviewSeparate PreviewMode = "separate"
	// PreviewGrouped shows one row per session, merging paired half-unit lessons.
	PreviewGrouped PreviewMode = "grouped"
)

func ParsePreviewMode(s string) (PreviewMode, error) {
	switch mode := PreviewMode(core.CleanString(s, true /* lower */)); mode {
	case PreviewSeparate, PreviewGrouped:
		return mode, nil
	case "":
		return PreviewSeparate, nil
	default:
		return "", core.NewValidationError(
			errors.Wrap(ErrInvalidPreviewMode, s),
			core.FieldError{Field: "mode", Error: "mode must be one of separate, grouped"},
		)
	}
}

// PreviewRow is a human readable line of a planned timetable.
type PreviewRow struct {
	OrderSchedule int      `json:"orderSchedule"`
	Date          Date     `json:"date"`
	SessionName   string   `json:"sessionName,omitempty"`
	Title         string   `json:"title"`
	LessonIDs     []int    `json:"lessonIds"`
	Exams         []string `json:"exams,omitempty"`
	Note          string   `json:"note,omitempty"`
}

// Preview projects mapping results for confirmation before submission.
// Lesson IDs resolve to lesson names and exam names are listed as annotations.
func Preview(results []MappingResult, sessions []CalendarSession, lessons []Lesson, mode PreviewMode) []PreviewRow {
	lessonsByID := make(map[int]Lesson, len(lessons))
	for _, l := range lessons {
		lessonsByID[l.ID] = l
	}
	sessionsByOrder := make(map[int]CalendarSession, len(sessions))
	for _, s := range sessions {
		sessionsByOrder[s.OrderSchedule] = s
	}

	rows := make([]PreviewRow, 0, len(results))
	for _, res := range results {
		row := projectResult(res, sessionsByOrder[res.OrderSchedule], lessonsByID)
		if mode == PreviewGrouped && len(rows) > 0 && rows[len(rows)-1].OrderSchedule == row.OrderSchedule {
			mergeRows(&rows[len(rows)-1], row)
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func projectResult(res MappingResult, sess CalendarSession, lessonsByID map[int]Lesson) PreviewRow {
	row := PreviewRow{
		OrderSchedule: res.OrderSchedule,
		Date:          sess.Date,
		SessionName:   sess.Name.String,
		LessonIDs:     []int{},
	}

	note := core.CleanString(res.Note)
	if !res.LessonID.Valid {
		if note != "" {
			row.Title = note
		} else {
			row.Title = OtherActivity
		}
		return row
	}

	row.LessonIDs = append(row.LessonIDs, res.LessonID.Int)
	row.Note = note
	lesson, ok := lessonsByID[res.LessonID.Int]
	if !ok {
		row.Title = "Lesson #" + strconv.Itoa(res.LessonID.Int)
		return row
	}
	row.Title = lesson.Name
	if lesson.HasExam() {
		row.Exams = append(row.Exams, lesson.ExamName.String)
	}
	return row
}

func mergeRows(dst *PreviewRow, src PreviewRow) {
	dst.Title = strings.Join([]string{dst.Title, src.Title}, " & ")
	dst.LessonIDs = append(dst.LessonIDs, src.LessonIDs...)
	dst.Exams = append(dst.Exams, src.Exams...)
	if src.Note != "" {
		if dst.Note != "" {
			dst.Note += "; " + src.Note
		} else {
			dst.Note = src.Note
		}
	}
}
