package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/catechism/core"
	"github.com/trezcool/catechism/core/timetable"
)

type timetableRepository struct {
	db *timetableTables
}

var _ timetable.Repository = (*timetableRepository)(nil) // interface compliance check

func NewTimetableRepository(db *DB) timetable.Repository {
	return &timetableRepository{db: db.timetable}
}

func (repo *timetableRepository) QueryLessons(_ context.Context, key timetable.Key, _ ...core.DBExecutor) ([]timetable.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return append([]timetable.Lesson{}, repo.db.lessons[key]...), nil
}

func (repo *timetableRepository) QuerySessions(_ context.Context, key timetable.Key, _ ...core.DBExecutor) ([]timetable.CalendarSession, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return append([]timetable.CalendarSession{}, repo.db.sessions[key]...), nil
}

func (repo *timetableRepository) GetAcademicYear(_ context.Context, id int, _ ...core.DBExecutor) (timetable.AcademicYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if year, ok := repo.db.years[id]; ok {
		return year, nil
	}
	return timetable.AcademicYear{}, timetable.ErrYearNotFound
}

func (repo *timetableRepository) SaveAcademicYear(_ context.Context, year timetable.AcademicYear, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.years[year.ID] = year
	return nil
}

func (repo *timetableRepository) ReplaceCurriculum(
	_ context.Context,
	key timetable.Key,
	lessons []timetable.Lesson,
	sessions []timetable.CalendarSession,
	_ ...core.DBExecutor,
) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	sorted := append([]timetable.CalendarSession{}, sessions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OrderSchedule < sorted[j].OrderSchedule })

	repo.db.lessons[key] = append([]timetable.Lesson{}, lessons...)
	repo.db.sessions[key] = sorted
	return nil
}

func (repo *timetableRepository) GetSubmission(_ context.Context, key timetable.Key, _ ...core.DBExecutor) (timetable.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sub, ok := repo.db.submissions[key]
	if !ok {
		return timetable.Submission{}, timetable.ErrNotFound
	}
	sub.Details = append([]timetable.MappingResult{}, sub.Details...)
	return sub, nil
}

func (repo *timetableRepository) CreateSubmission(_ context.Context, sub timetable.Submission, _ ...core.DBExecutor) (timetable.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.submissions[sub.Key]; ok {
		return timetable.Submission{}, timetable.ErrAlreadySubmitted
	}
	sub.ID = uuid.New().String()
	sub.Details = append([]timetable.MappingResult{}, sub.Details...)
	repo.db.submissions[sub.Key] = sub
	return sub, nil
}
