package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"github.com/trezcool/catechism/core"
	"github.com/trezcool/catechism/core/timetable"
	"github.com/trezcool/catechism/core/user"
	logsvc "github.com/trezcool/catechism/services/logger"
)

// NewConfig returns a configuration suitable for tests, without reading the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "Catechism",
		SecretKey:                 "test-secret",
		DefaultFromEmail:          mail.Address{Name: "Catechism", Address: "noreply@catechism.test"},
		AdminEmail:                "principal@catechism.test",
		JWTExpirationDelta:        time.Hour,
		JWTRefreshExpirationDelta: 4 * time.Hour,
		Server:                    core.ServerConfig{Host: "127.0.0.1", Port: 8000, ShutdownTimeout: time.Second},
		Backend:                   core.BackendConfig{Timeout: 5 * time.Second},
		Timetable:                 core.TimetableConfig{PreviewMode: string(timetable.PreviewSeparate)},
	}
}

// NewLogger returns a silent logger with rollbar disabled.
func NewLogger() core.Logger {
	l := logsvc.NewRollbarLogger(zap.NewNop().Sugar(), NewConfig())
	l.Enable(false)
	return l
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// Lesson builds a lesson. A non-empty exam turns it into a lesson_and_exam slot.
func Lesson(id int, name string, units float64, exam ...string) timetable.Lesson {
	l := timetable.Lesson{ID: id, Name: name, SlotType: timetable.SlotLesson, SessionUnits: units}
	if len(exam) > 0 && exam[0] != "" {
		l.SlotType = timetable.SlotLessonAndExam
		l.ExamName = null.StringFrom(exam[0])
	}
	return l
}

// Sessions builds n weekly sessions starting on start, with IDs firstID, firstID+1... and orders 1..n.
func Sessions(firstID int, start timetable.Date, n int) []timetable.CalendarSession {
	sessions := make([]timetable.CalendarSession, 0, n)
	for i := 0; i < n; i++ {
		sessions = append(sessions, timetable.CalendarSession{
			ID:            firstID + i,
			Date:          timetable.DateOf(start.AddDate(0, 0, 7*i)),
			OrderSchedule: i + 1,
		})
	}
	return sessions
}

// Curriculum builds a curriculum for key whose year starts on start.
func Curriculum(key timetable.Key, start timetable.Date, lessons []timetable.Lesson, sessions []timetable.CalendarSession) timetable.Curriculum {
	return timetable.Curriculum{
		Year:     timetable.AcademicYear{ID: key.YearID, Name: start.Format("2006") + "-" + start.AddDate(1, 0, 0).Format("2006"), StartDate: start},
		GradeID:  key.GradeID,
		Lessons:  lessons,
		Sessions: sessions,
	}
}

func ImportCurriculum(t *testing.T, svc *timetable.Service, cur timetable.Curriculum) {
	if err := svc.ImportCurriculum(context.Background(), cur); err != nil {
		t.Fatalf("importCurriculum() failed: %v", err)
	}
}
