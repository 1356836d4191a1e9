package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/catechism/core"
	"github.com/trezcool/catechism/core/timetable"
	"github.com/trezcool/catechism/storage/database"
)

type submissionRow struct {
	ID          string      `db:"id"`
	GradeID     int         `db:"grade_id"`
	YearID      int         `db:"year_id"`
	SubmittedBy null.String `db:"submitted_by"`
	SubmittedAt time.Time   `db:"submitted_at"`
}

type timetableRepository struct {
	repository
}

var _ timetable.Repository = (*timetableRepository)(nil) // interface compliance check

func NewTimetableRepository(db *sqlx.DB) timetable.Repository {
	return &timetableRepository{repository{db: db}}
}

func (repo timetableRepository) QueryLessons(ctx context.Context, key timetable.Key, exec ...core.DBExecutor) ([]timetable.Lesson, error) {
	var lessons []timetable.Lesson
	err := sqlx.SelectContext(
		ctx, repo.getExec(exec), &lessons,
		`SELECT id, name, slot_type, exam_name, session_units FROM lesson
		WHERE grade_id = $1 AND year_id = $2
		ORDER BY position`,
		key.GradeID, key.YearID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting lessons")
	}
	return lessons, nil
}

func (repo timetableRepository) QuerySessions(ctx context.Context, key timetable.Key, exec ...core.DBExecutor) ([]timetable.CalendarSession, error) {
	var sessions []timetable.CalendarSession
	err := sqlx.SelectContext(
		ctx, repo.getExec(exec), &sessions,
		`SELECT id, date, order_schedule, name FROM calendar_session
		WHERE grade_id = $1 AND year_id = $2
		ORDER BY order_schedule`,
		key.GradeID, key.YearID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting calendar sessions")
	}
	return sessions, nil
}

func (repo timetableRepository) GetAcademicYear(ctx context.Context, id int, exec ...core.DBExecutor) (timetable.AcademicYear, error) {
	var year timetable.AcademicYear
	err := sqlx.GetContext(ctx, repo.getExec(exec), &year, `SELECT id, name, start_date FROM academic_year WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return timetable.AcademicYear{}, timetable.ErrYearNotFound
		}
		return timetable.AcademicYear{}, errors.Wrap(err, "selecting academic year")
	}
	return year, nil
}

func (repo timetableRepository) SaveAcademicYear(ctx context.Context, year timetable.AcademicYear, exec ...core.DBExecutor) error {
	_, err := sqlx.NamedExecContext(
		ctx, repo.getExec(exec),
		`INSERT INTO academic_year (id, name, start_date) VALUES (:id, :name, :start_date)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, start_date = EXCLUDED.start_date`,
		year,
	)
	return errors.Wrap(err, "upserting academic year")
}

func (repo timetableRepository) ReplaceCurriculum(
	ctx context.Context,
	key timetable.Key,
	lessons []timetable.Lesson,
	sessions []timetable.CalendarSession,
	exec ...core.DBExecutor,
) error {
	return repo.inTx(ctx, exec, func(exe sqlx.ExtContext) error {
		if _, err := exe.ExecContext(ctx, `DELETE FROM lesson WHERE grade_id = $1 AND year_id = $2`, key.GradeID, key.YearID); err != nil {
			return errors.Wrap(err, "deleting lessons")
		}
		if _, err := exe.ExecContext(ctx, `DELETE FROM calendar_session WHERE grade_id = $1 AND year_id = $2`, key.GradeID, key.YearID); err != nil {
			return errors.Wrap(err, "deleting calendar sessions")
		}

		for pos, l := range lessons {
			_, err := exe.ExecContext(
				ctx,
				`INSERT INTO lesson (id, grade_id, year_id, position, name, slot_type, exam_name, session_units)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				l.ID, key.GradeID, key.YearID, pos, l.Name, l.SlotType, l.ExamName, l.SessionUnits,
			)
			if err != nil {
				return errors.Wrapf(err, "inserting lesson %d", l.ID)
			}
		}
		for _, s := range sessions {
			_, err := exe.ExecContext(
				ctx,
				`INSERT INTO calendar_session (id, grade_id, year_id, date, order_schedule, name)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				s.ID, key.GradeID, key.YearID, s.Date, s.OrderSchedule, s.Name,
			)
			if err != nil {
				return errors.Wrapf(err, "inserting calendar session %d", s.ID)
			}
		}
		return nil
	})
}

func (repo timetableRepository) GetSubmission(ctx context.Context, key timetable.Key, exec ...core.DBExecutor) (timetable.Submission, error) {
	exe := repo.getExec(exec)

	var row submissionRow
	err := sqlx.GetContext(
		ctx, exe, &row,
		`SELECT id, grade_id, year_id, submitted_by, submitted_at FROM timetable_submission
		WHERE grade_id = $1 AND year_id = $2`,
		key.GradeID, key.YearID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return timetable.Submission{}, timetable.ErrNotFound
		}
		return timetable.Submission{}, errors.Wrap(err, "selecting submission")
	}

	var details []timetable.MappingResult
	err = sqlx.SelectContext(
		ctx, exe, &details,
		`SELECT order_schedule, lesson_id, note FROM timetable_detail
		WHERE submission_id = $1
		ORDER BY position`,
		row.ID,
	)
	if err != nil {
		return timetable.Submission{}, errors.Wrap(err, "selecting submission details")
	}

	return timetable.Submission{
		ID:          row.ID,
		Key:         timetable.Key{GradeID: row.GradeID, YearID: row.YearID},
		SubmittedBy: row.SubmittedBy.String,
		SubmittedAt: row.SubmittedAt.UTC(),
		Details:     details,
	}, nil
}

func (repo timetableRepository) CreateSubmission(ctx context.Context, sub timetable.Submission, exec ...core.DBExecutor) (timetable.Submission, error) {
	sub.ID = uuid.New().String()
	sub.SubmittedAt = sub.SubmittedAt.UTC()

	err := repo.inTx(ctx, exec, func(exe sqlx.ExtContext) error {
		_, err := exe.ExecContext(
			ctx,
			`INSERT INTO timetable_submission (id, grade_id, year_id, submitted_by, submitted_at)
			VALUES ($1, $2, $3, $4, $5)`,
			sub.ID, sub.Key.GradeID, sub.Key.YearID, null.NewString(sub.SubmittedBy, sub.SubmittedBy != ""), sub.SubmittedAt,
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return timetable.ErrAlreadySubmitted
			}
			return errors.Wrap(err, "inserting submission")
		}

		for pos, res := range sub.Details {
			_, err = exe.ExecContext(
				ctx,
				`INSERT INTO timetable_detail (submission_id, position, order_schedule, lesson_id, note)
				VALUES ($1, $2, $3, $4, $5)`,
				sub.ID, pos, res.OrderSchedule, res.LessonID, res.Note,
			)
			if err != nil {
				return errors.Wrapf(err, "inserting submission detail %d", pos)
			}
		}
		return nil
	})
	if err != nil {
		return timetable.Submission{}, err
	}
	return sub, nil
}
