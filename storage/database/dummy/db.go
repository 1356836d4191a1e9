package dummydb

import (
	"sync"

	"github.com/trezcool/catechism/core/timetable"
	"github.com/trezcool/catechism/core/user"
)

type (
	// DB is an in-memory store, safe for concurrent use.
	DB struct {
		user      *userTable
		timetable *timetableTables
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	timetableTables struct {
		sync.RWMutex
		years       map[int]timetable.AcademicYear
		lessons     map[timetable.Key][]timetable.Lesson
		sessions    map[timetable.Key][]timetable.CalendarSession
		submissions map[timetable.Key]timetable.Submission
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		timetable: &timetableTables{
			years:       make(map[int]timetable.AcademicYear),
			lessons:     make(map[timetable.Key][]timetable.Lesson),
			sessions:    make(map[timetable.Key][]timetable.CalendarSession),
			submissions: make(map[timetable.Key]timetable.Submission),
		},
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.timetable.Lock()
	db.timetable.years = make(map[int]timetable.AcademicYear)
	db.timetable.lessons = make(map[timetable.Key][]timetable.Lesson)
	db.timetable.sessions = make(map[timetable.Key][]timetable.CalendarSession)
	db.timetable.submissions = make(map[timetable.Key]timetable.Submission)
	db.timetable.Unlock()
}
