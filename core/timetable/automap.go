package timetable

import (
	"sort"

	"github.com/volatiletech/null/v8"
)

// AutoMap assigns lessons to sessions in a single forward pass over the sessions ordered by OrderSchedule:
//   - a session with a manual note gets that note and no lesson
//   - once lessons are exhausted, each remaining session gets no lesson and an empty note
//   - two consecutive half-unit lessons share one session (two results with the same OrderSchedule)
//   - an unpaired half-unit lesson takes a whole session, with the session's additional note if any
//   - a full-unit lesson takes one session
//
// AutoMap never fails and does not check the capacity gate; lessons left over are returned as unassigned.
func AutoMap(sessions []CalendarSession, lessons []Lesson, acts Activities) (results []MappingResult, unassigned []Lesson) {
	ordered := make([]CalendarSession, len(sessions))
	copy(ordered, sessions)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].OrderSchedule < ordered[j].OrderSchedule })

	results = make([]MappingResult, 0, len(ordered)+1)
	emit := func(s CalendarSession, lessonID null.Int, note string) {
		results = append(results, MappingResult{OrderSchedule: s.OrderSchedule, LessonID: lessonID, Note: note})
	}

	var i int
	for _, s := range ordered {
		if note := acts.ManualNote(s.ID); note != "" {
			emit(s, null.Int{}, note)
			continue
		}
		if i >= len(lessons) {
			emit(s, null.Int{}, "")
			continue
		}

		curr := lessons[i]
		if curr.IsHalf() {
			if i+1 < len(lessons) && lessons[i+1].IsHalf() {
				emit(s, null.IntFrom(curr.ID), "")
				emit(s, null.IntFrom(lessons[i+1].ID), "")
				i += 2
				continue
			}
			emit(s, null.IntFrom(curr.ID), acts.AdditionalNote(s.ID))
			i++
			continue
		}
		emit(s, null.IntFrom(curr.ID), "")
		i++
	}

	if i < len(lessons) {
		unassigned = append(unassigned, lessons[i:]...)
	}
	return results, unassigned
}
