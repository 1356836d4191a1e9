package timetable

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/catechism/core"
	"github.com/trezcool/catechism/core/user"
)

type (
	Repository interface {
		// QueryLessons returns the lessons of key in curriculum order.
		QueryLessons(ctx context.Context, key Key, exec ...core.DBExecutor) ([]Lesson, error)
		// QuerySessions returns the calendar sessions of key ordered by OrderSchedule.
		QuerySessions(ctx context.Context, key Key, exec ...core.DBExecutor) ([]CalendarSession, error)
		GetAcademicYear(ctx context.Context, id int, exec ...core.DBExecutor) (AcademicYear, error)
		SaveAcademicYear(ctx context.Context, year AcademicYear, exec ...core.DBExecutor) error
		// ReplaceCurriculum drops the lessons and sessions of key and stores the given ones.
		ReplaceCurriculum(ctx context.Context, key Key, lessons []Lesson, sessions []CalendarSession, exec ...core.DBExecutor) error
		GetSubmission(ctx context.Context, key Key, exec ...core.DBExecutor) (Submission, error)
		// CreateSubmission fails with ErrAlreadySubmitted when key already has a submission.
		CreateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
	}

	// Source loads the inputs of a selection.
	Source interface {
		Lessons(ctx context.Context, key Key) ([]Lesson, error)
		Sessions(ctx context.Context, key Key) ([]CalendarSession, error)
	}

	// Gateway persists a confirmed timetable and returns the backend's message.
	Gateway interface {
		SubmitTimetable(ctx context.Context, key Key, results []MappingResult) (string, error)
	}

	// Exporter renders preview rows into a downloadable document.
	Exporter interface {
		Export(w io.Writer, title string, rows []PreviewRow) error
		ContentType() string
		Ext() string
	}
)

// Selection holds the inputs loaded for a Key.
type Selection struct {
	Key      Key
	Lessons  []Lesson
	Sessions []CalendarSession
}

func (sel Selection) Capacity(acts Activities) Capacity {
	return NewCapacity(sel.Lessons, sel.Sessions, acts)
}

// Fetch loads the lessons and sessions of key concurrently. Both must succeed.
func Fetch(ctx context.Context, src Source, key Key) (Selection, error) {
	if err := key.check(); err != nil {
		return Selection{}, err
	}

	sel := Selection{Key: key}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lessons, err := src.Lessons(gctx, key)
		if err != nil {
			return errors.Wrap(err, "fetching lessons")
		}
		sel.Lessons = lessons
		return nil
	})
	g.Go(func() error {
		sessions, err := src.Sessions(gctx, key)
		if err != nil {
			return errors.Wrap(err, "fetching sessions")
		}
		sel.Sessions = sessions
		return nil
	})
	if err := g.Wait(); err != nil {
		return Selection{}, err
	}
	return sel, nil
}

// Plan is the outcome of auto-mapping a selection.
type Plan struct {
	Capacity   Capacity        `json:"capacity"`
	Results    []MappingResult `json:"data"`
	Preview    []PreviewRow    `json:"preview"`
	Unassigned []Lesson        `json:"unassigned"`
}

type Service struct {
	db       core.DB
	repo     Repository
	mailSvc  core.EmailService
	exporter Exporter
	logger   core.Logger
	conf     *core.Config
	now      func() time.Time
}

var _ Source = (*Service)(nil)

// NewService returns a timetable Service. db may be nil when the repository is not SQL backed,
// and exporter may be nil to send notifications without attachment.
func NewService(
	db core.DB,
	repo Repository,
	mailSvc core.EmailService,
	exporter Exporter,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		mailSvc:  mailSvc,
		exporter: exporter,
		logger:   logger,
		conf:     conf,
		now:      time.Now,
	}
}

func (svc *Service) inTx(ctx context.Context, fn func(exec ...core.DBExecutor) error) error {
	if svc.db == nil {
		return fn()
	}
	return core.InTx(ctx, svc.db, func(tx core.DBTransactor) error { return fn(tx) })
}

// DefaultPreviewMode is the configured preview mode. Unknown modes are rejected when the config loads.
func (svc *Service) DefaultPreviewMode() PreviewMode {
	if svc.conf.Timetable.PreviewMode == "" {
		return PreviewSeparate
	}
	return PreviewMode(svc.conf.Timetable.PreviewMode)
}

func (svc *Service) Lessons(ctx context.Context, key Key) ([]Lesson, error) {
	if err := key.check(); err != nil {
		return nil, err
	}
	lessons, err := svc.repo.QueryLessons(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	if lessons == nil {
		lessons = []Lesson{}
	}
	return lessons, nil
}

func (svc *Service) Sessions(ctx context.Context, key Key) ([]CalendarSession, error) {
	if err := key.check(); err != nil {
		return nil, err
	}
	sessions, err := svc.repo.QuerySessions(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []CalendarSession{}
	}
	return sessions, nil
}

// Capacity computes the remaining slots of key once acts are applied.
func (svc *Service) Capacity(ctx context.Context, key Key, acts Activities) (Capacity, error) {
	sel, err := Fetch(ctx, svc, key)
	if err != nil {
		return Capacity{}, err
	}
	if err = acts.check(sel.Sessions); err != nil {
		return Capacity{}, err
	}
	return sel.Capacity(acts), nil
}

// Plan auto-maps the lessons of key onto its sessions. It is refused while slots remain.
func (svc *Service) Plan(ctx context.Context, key Key, acts Activities, mode ...PreviewMode) (Plan, error) {
	sel, err := Fetch(ctx, svc, key)
	if err != nil {
		return Plan{}, err
	}
	if err = acts.check(sel.Sessions); err != nil {
		return Plan{}, err
	}

	capacity := sel.Capacity(acts)
	if !capacity.CanAutoMap() {
		return Plan{Capacity: capacity}, gateError(capacity)
	}

	results, unassigned := AutoMap(sel.Sessions, sel.Lessons, acts)
	if len(unassigned) > 0 {
		svc.logger.Warn(
			fmt.Sprintf("auto-mapping %s left %d lesson(s) unassigned", key, len(unassigned)),
			map[string]interface{}{"unassigned": unassigned},
		)
	} else {
		unassigned = []Lesson{}
	}

	pMode := svc.DefaultPreviewMode()
	if len(mode) > 0 && mode[0] != "" {
		pMode = mode[0]
	}
	return Plan{
		Capacity:   capacity,
		Results:    results,
		Preview:    Preview(results, sel.Sessions, sel.Lessons, pMode),
		Unassigned: unassigned,
	}, nil
}

func gateError(c Capacity) error {
	msg := fmt.Sprintf("%d slot(s) remaining", c.Remaining)
	if c.ScheduleCount == 0 {
		msg = "no calendar session to map"
	}
	return core.NewValidationError(ErrAutoMapDisabled, core.FieldError{Field: "activities", Error: msg})
}

// Timetable returns the submitted timetable of key.
func (svc *Service) Timetable(ctx context.Context, key Key) (Submission, error) {
	if err := key.check(); err != nil {
		return Submission{}, err
	}
	sub, err := svc.repo.GetSubmission(ctx, key)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Submission{}, ErrNotFound
		}
		return Submission{}, errors.Wrap(err, "getting submission")
	}
	return sub, nil
}

// Submit persists the timetable of key. It can only happen once per key, before the academic year starts.
func (svc *Service) Submit(ctx context.Context, key Key, results []MappingResult, by user.User) (Submission, error) {
	if err := key.check(); err != nil {
		return Submission{}, err
	}
	if len(results) == 0 {
		return Submission{}, core.NewValidationError(ErrNothingToSubmit, core.FieldError{Field: "details", Error: ErrNothingToSubmit.Error()})
	}

	year, err := svc.repo.GetAcademicYear(ctx, key.YearID)
	if err != nil {
		if errors.Cause(err) == ErrYearNotFound {
			return Submission{}, core.NewValidationError(ErrYearNotFound, core.FieldError{Field: "yearId", Error: ErrYearNotFound.Error()})
		}
		return Submission{}, errors.Wrap(err, "getting academic year")
	}
	if !DateOf(svc.now().UTC()).Before(year.StartDate) {
		return Submission{}, core.NewValidationError(ErrYearStarted)
	}

	sel, err := Fetch(ctx, svc, key)
	if err != nil {
		return Submission{}, err
	}
	if err = checkResults(results, sel); err != nil {
		return Submission{}, err
	}

	var sub Submission
	err = svc.inTx(ctx, func(exec ...core.DBExecutor) error {
		if _, err := svc.repo.GetSubmission(ctx, key, exec...); err == nil {
			return ErrAlreadySubmitted
		} else if errors.Cause(err) != ErrNotFound {
			return errors.Wrap(err, "getting submission")
		}

		var err error
		sub, err = svc.repo.CreateSubmission(ctx, Submission{
			Key:         key,
			SubmittedBy: by.ID,
			SubmittedAt: svc.now().UTC(),
			Details:     results,
		}, exec...)
		return err
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadySubmitted {
			return Submission{}, core.NewValidationError(ErrAlreadySubmitted)
		}
		return Submission{}, errors.Wrap(err, "creating submission")
	}

	svc.logger.Info(fmt.Sprintf("timetable submitted: %s", key), by)
	svc.sendSubmittedMail(sub, year, sel, by)
	return sub, nil
}

func checkResults(results []MappingResult, sel Selection) error {
	orders := make(map[int]bool, len(sel.Sessions))
	for _, s := range sel.Sessions {
		orders[s.OrderSchedule] = true
	}
	lessons := make(map[int]bool, len(sel.Lessons))
	for _, l := range sel.Lessons {
		lessons[l.ID] = true
	}

	var flds []core.FieldError
	for i, res := range results {
		if !orders[res.OrderSchedule] {
			flds = append(flds, core.FieldError{Field: fmt.Sprintf("details[%d].orderSchedule", i), Error: ErrUnknownSession.Error()})
		}
		if res.LessonID.Valid && !lessons[res.LessonID.Int] {
			flds = append(flds, core.FieldError{Field: fmt.Sprintf("details[%d].lessonId", i), Error: ErrUnknownLesson.Error()})
		}
	}
	if flds != nil {
		return core.NewValidationError(errors.New("invalid timetable details"), flds...)
	}
	return nil
}

type submittedMailData struct {
	SubmittedBy string
	GradeID     int
	YearName    string
	Rows        []PreviewRow
}

func (svc *Service) sendSubmittedMail(sub Submission, year AcademicYear, sel Selection, by user.User) {
	var to []mail.Address
	if by.Email != "" {
		to = append(to, mail.Address{Name: by.Name, Address: by.Email})
	}
	if svc.conf.AdminEmail != "" && svc.conf.AdminEmail != by.Email {
		to = append(to, mail.Address{Address: svc.conf.AdminEmail})
	}
	if len(to) == 0 {
		return
	}

	rows := Preview(sub.Details, sel.Sessions, sel.Lessons, svc.DefaultPreviewMode())
	submitter := by.Name
	if submitter == "" {
		submitter = by.Username
	}
	msg := &core.EmailMessage{
		To:           to,
		Subject:      fmt.Sprintf("Timetable submitted for grade %d (%s)", sub.Key.GradeID, year.Name),
		TemplateName: "timetable_submitted",
		TemplateData: submittedMailData{
			SubmittedBy: submitter,
			GradeID:     sub.Key.GradeID,
			YearName:    year.Name,
			Rows:        rows,
		},
	}

	if svc.exporter != nil {
		var buf bytes.Buffer
		title := fmt.Sprintf("Grade %d - %s", sub.Key.GradeID, year.Name)
		if err := svc.exporter.Export(&buf, title, rows); err != nil {
			svc.logger.Error(fmt.Sprintf("exporting timetable: %v", err), err)
		} else {
			filename := fmt.Sprintf("timetable-%d-%d%s", sub.Key.GradeID, sub.Key.YearID, svc.exporter.Ext())
			if err = msg.Attach(&buf, filename, svc.exporter.ContentType()); err != nil {
				svc.logger.Error(fmt.Sprintf("attaching timetable: %v", err), err)
			}
		}
	}

	svc.mailSvc.SendMessages(msg)
}

// ImportCurriculum stores the academic year, lessons and sessions of a grade,
// replacing the previous ones unless a timetable was already submitted.
func (svc *Service) ImportCurriculum(ctx context.Context, cur Curriculum) error {
	if err := cur.Validate(); err != nil {
		return err
	}
	key := cur.Key()

	return svc.inTx(ctx, func(exec ...core.DBExecutor) error {
		if _, err := svc.repo.GetSubmission(ctx, key, exec...); err == nil {
			return core.NewValidationError(ErrAlreadySubmitted)
		} else if errors.Cause(err) != ErrNotFound {
			return errors.Wrap(err, "getting submission")
		}
		if err := svc.repo.SaveAcademicYear(ctx, cur.Year, exec...); err != nil {
			return errors.Wrap(err, "saving academic year")
		}
		if err := svc.repo.ReplaceCurriculum(ctx, key, cur.Lessons, cur.Sessions, exec...); err != nil {
			return errors.Wrap(err, "replacing curriculum")
		}
		return nil
	})
}
