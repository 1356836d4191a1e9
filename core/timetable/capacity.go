package timetable

import "math"

// Capacity tells whether the sessions of a selection can hold its lessons and manual activities.
type Capacity struct {
	TotalUnits    float64 `json:"totalUnits"`    // sum of the lessons' session units
	ScheduleCount int     `json:"scheduleCount"` // number of calendar sessions
	FilledCount   int     `json:"filledCount"`   // sessions reserved by a manual activity
	Remaining     int     `json:"remaining"`
}

// NewCapacity computes the capacity of a selection.
// Manual notes that are blank or attached to an unknown session are not counted.
func NewCapacity(lessons []Lesson, sessions []CalendarSession, acts Activities) Capacity {
	var total float64
	for _, l := range lessons {
		total += l.SessionUnits
	}
	var filled int
	for _, s := range sessions {
		if acts.ManualNote(s.ID) != "" {
			filled++
		}
	}
	return newCapacity(total, len(sessions), filled)
}

func newCapacity(total float64, scheduleCount, filled int) Capacity {
	return Capacity{
		TotalUnits:    total,
		ScheduleCount: scheduleCount,
		FilledCount:   filled,
		// an unpaired half-unit lesson still takes a whole session, hence ceil
		Remaining: scheduleCount - (int(math.Ceil(total)) + filled),
	}
}

// CanAutoMap reports whether auto-mapping is permitted: data is loaded and no slot remains.
func (c Capacity) CanAutoMap() bool {
	return c.ScheduleCount > 0 && c.Remaining == 0
}
