package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/catechism/core/timetable"
	"github.com/trezcool/catechism/core/user"
	"github.com/trezcool/catechism/tests"
)

type timetableFixture struct {
	key       timetable.Key
	lessons   []timetable.Lesson
	sessions  []timetable.CalendarSession
	admin     user.User
	catechist user.User
	parent    user.User
}

// setupTimetable imports the curriculum [A 1.0, B 0.5, C 0.5, D 1.0] over 4 weekly sessions of a year starting in 60 days.
func setupTimetable(t *testing.T) timetableFixture {
	resetDB()

	fx := timetableFixture{
		key: timetable.Key{GradeID: 3, YearID: 7},
		lessons: []timetable.Lesson{
			testutil.Lesson(1, "Creation", timetable.FullUnit),
			testutil.Lesson(2, "Exodus", timetable.HalfUnit, "Quiz 1"),
			testutil.Lesson(3, "Psalms", timetable.HalfUnit),
			testutil.Lesson(4, "Prophets", timetable.FullUnit),
		},
	}
	start := timetable.DateOf(time.Now().UTC().AddDate(0, 0, 60))
	fx.sessions = testutil.Sessions(101, start, 4)
	testutil.ImportCurriculum(t, ttSvc, testutil.Curriculum(fx.key, start, fx.lessons, fx.sessions))

	fx.admin = testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@catechism.test", "", []string{user.RoleAdmin}, true)
	fx.catechist = testutil.CreateUser(t, usrRepo, "Catechist", "catechist", "catechist@catechism.test", "", []string{user.RoleCatechist}, true)
	fx.parent = testutil.CreateUser(t, usrRepo, "Parent", "parent", "parent@catechism.test", "", []string{user.RoleParent}, true)
	return fx
}

func keyPath(path string, key timetable.Key) string {
	return fmt.Sprintf("%s?gradeId=%d&yearId=%d", path, key.GradeID, key.YearID)
}

func Test_timetableApi_inputs(t *testing.T) {
	fx := setupTimetable(t)
	parentToken := getToken(t, fx.parent)

	tests := []httpTest{
		{name: "Auth required", path: keyPath("/v1/lessons", fx.key), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Lessons", path: keyPath("/v1/lessons", fx.key), token: parentToken,
			wantData: marchallObj(t, map[string]interface{}{"data": map[string]interface{}{"slotDTOList": fx.lessons}}),
		},
		{
			name: "Lessons (unknown key)", path: "/v1/lessons?gradeId=9&yearId=9", token: parentToken,
			wantData: []byte(`{"data": {"slotDTOList": []}}`),
		},
		{
			name: "Lessons (invalid key)", path: "/v1/lessons?gradeId=abc", token: parentToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"gradeId": "gradeId must be an integer", "yearId": "yearId is a required field"}),
		},
		{
			name: "Lessons (non-positive key)", path: "/v1/lessons?gradeId=0&yearId=7", token: parentToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"gradeId": "gradeId must be greater than 0"}),
		},
		{
			name: "Schedule", path: keyPath("/v1/schedule", fx.key), token: getToken(t, fx.catechist),
			wantData: marchallObj(t, map[string]interface{}{"data": fx.sessions}),
		},
	}
	runHTTPTests(t, tests)
}

func Test_timetableApi_capacity(t *testing.T) {
	fx := setupTimetable(t)
	path := keyPath("/v1/time-table-detail/capacity", fx.key)
	token := getToken(t, fx.catechist)

	tests := []httpTest{
		{name: "Parent forbidden", method: http.MethodPost, path: path, token: getToken(t, fx.parent), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "No activity", method: http.MethodPost, path: path, token: token,
			wantData: marchallObj(t, timetable.Capacity{TotalUnits: 3, ScheduleCount: 4, FilledCount: 0, Remaining: 1}),
		},
		{
			name: "Manual activity", method: http.MethodPost, path: path, token: token, body: []byte(`{"manual": {"104": "Field trip"}}`),
			wantData: marchallObj(t, timetable.Capacity{TotalUnits: 3, ScheduleCount: 4, FilledCount: 1, Remaining: 0}),
		},
		{
			name: "Blank manual activity", method: http.MethodPost, path: path, token: token, body: []byte(`{"manual": {"104": "   "}}`),
			wantData: marchallObj(t, timetable.Capacity{TotalUnits: 3, ScheduleCount: 4, FilledCount: 0, Remaining: 1}),
		},
		{
			name: "Over capacity", method: http.MethodPost, path: path, token: token, body: []byte(`{"manual": {"103": "Retreat", "104": "Field trip"}}`),
			wantData: marchallObj(t, timetable.Capacity{TotalUnits: 3, ScheduleCount: 4, FilledCount: 2, Remaining: -1}),
		},
		{
			name: "Unknown session", method: http.MethodPost, path: path, token: token, body: []byte(`{"manual": {"999": "Field trip"}}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"manual.999": "unknown calendar session"}),
		},
		{
			name: "Invalid body", method: http.MethodPost, path: path, token: token, body: []byte(`{"manual": [`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid request body"}),
		},
	}
	runHTTPTests(t, tests)
}

func Test_timetableApi_autoMap(t *testing.T) {
	fx := setupTimetable(t)
	path := keyPath("/v1/time-table-detail/auto-map", fx.key)
	token := getToken(t, fx.catechist)
	acts := []byte(`{"manual": {"104": "Field trip"}}`)

	results := []timetable.MappingResult{
		{OrderSchedule: 1, LessonID: null.IntFrom(1)},
		{OrderSchedule: 2, LessonID: null.IntFrom(2)},
		{OrderSchedule: 2, LessonID: null.IntFrom(3)},
		{OrderSchedule: 3, LessonID: null.IntFrom(4)},
		{OrderSchedule: 4, Note: "Field trip"},
	}
	plan := func(mode timetable.PreviewMode) []byte {
		return marchallObj(t, timetable.Plan{
			Capacity:   timetable.Capacity{TotalUnits: 3, ScheduleCount: 4, FilledCount: 1, Remaining: 0},
			Results:    results,
			Preview:    timetable.Preview(results, fx.sessions, fx.lessons, mode),
			Unassigned: []timetable.Lesson{},
		})
	}

	tests := []httpTest{
		{name: "Parent forbidden", method: http.MethodPost, path: path, body: acts, token: getToken(t, fx.parent), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "Gate closed", method: http.MethodPost, path: path, token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"activities": "1 slot(s) remaining"}),
		},
		{
			name: "No session", method: http.MethodPost, path: "/v1/time-table-detail/auto-map?gradeId=9&yearId=9", token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"activities": "no calendar session to map"}),
		},
		{name: "Separate preview", method: http.MethodPost, path: path, body: acts, token: token, wantData: plan(timetable.PreviewSeparate)},
		{name: "Grouped preview", method: http.MethodPost, path: path + "&mode=grouped", body: acts, token: getToken(t, fx.admin), wantData: plan(timetable.PreviewGrouped)},
		{
			name: "Invalid mode", method: http.MethodPost, path: path + "&mode=merged", body: acts, token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"mode": "mode must be one of separate, grouped"}),
		},
	}
	runHTTPTests(t, tests)
}

func Test_timetableApi_submit(t *testing.T) {
	fx := setupTimetable(t)
	path := keyPath("/v1/time-table-detail", fx.key)
	token := getToken(t, fx.catechist)

	results := []timetable.MappingResult{
		{OrderSchedule: 1, LessonID: null.IntFrom(1)},
		{OrderSchedule: 2, LessonID: null.IntFrom(2)},
		{OrderSchedule: 2, LessonID: null.IntFrom(3)},
		{OrderSchedule: 3, LessonID: null.IntFrom(4)},
		{OrderSchedule: 4, Note: "Field trip"},
	}

	// a year that already started
	startedKey := timetable.Key{GradeID: 4, YearID: 8}
	started := timetable.DateOf(time.Now().UTC().AddDate(0, 0, -1))
	testutil.ImportCurriculum(t, ttSvc, testutil.Curriculum(startedKey, started, fx.lessons[:1], testutil.Sessions(201, started, 1)))

	tests := []httpTest{
		{name: "Not submitted yet", path: path, token: getToken(t, fx.parent), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})},
		{
			name: "Parent forbidden", method: http.MethodPost, path: path, body: marchallObj(t, results), token: getToken(t, fx.parent),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Nothing to submit", method: http.MethodPost, path: path, body: []byte(`[]`), token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"details": "nothing to submit"}),
		},
		{
			name: "Unknown lesson and session", method: http.MethodPost, path: path, token: token,
			body:     marchallObj(t, []timetable.MappingResult{{OrderSchedule: 1, LessonID: null.IntFrom(42)}, {OrderSchedule: 9}}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"details[0].lessonId": "unknown lesson", "details[1].orderSchedule": "unknown calendar session"}),
		},
		{
			name: "Year started", method: http.MethodPost, path: keyPath("/v1/time-table-detail", startedKey), token: token,
			body:     marchallObj(t, []timetable.MappingResult{{OrderSchedule: 1, LessonID: null.IntFrom(1)}}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: timetable.ErrYearStarted.Error()}),
		},
		{
			name: "Unknown year", method: http.MethodPost, path: "/v1/time-table-detail?gradeId=3&yearId=99", token: token, body: marchallObj(t, results),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"yearId": timetable.ErrYearNotFound.Error()}),
		},
		{
			name: "Success", method: http.MethodPost, path: path, body: marchallObj(t, results), token: token,
			wantCode: http.StatusCreated, wantData: marchallObj(t, map[string]string{"message": "timetable submitted"}),
		},
		{
			name: "Already submitted", method: http.MethodPost, path: path, body: marchallObj(t, results), token: getToken(t, fx.admin),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: timetable.ErrAlreadySubmitted.Error()}),
		},
		{name: "Submitted", path: path, token: getToken(t, fx.parent), wantData: marchallObj(t, map[string]interface{}{"data": results})},
	}
	runHTTPTests(t, tests)

	t.Run("Notification", func(t *testing.T) {
		sent := mailSvc.SentMessages()
		if assert.Len(t, sent, 1) {
			assert.Len(t, sent[0].To, 2)
			assert.Equal(t, fx.catechist.Email, sent[0].To[0].Address)
			assert.Equal(t, conf.AdminEmail, sent[0].To[1].Address)
			assert.Contains(t, sent[0].TextContent, "grade 3")
			if assert.Len(t, sent[0].Attachments, 1) {
				assert.Equal(t, "timetable-3-7.xlsx", sent[0].Attachments[0].Filename)
			}
		}
	})
}

func Test_timetableApi_deactivated(t *testing.T) {
	fx := setupTimetable(t)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@catechism.test", "", []string{user.RoleCatechist}, false)

	tests := []httpTest{
		{
			name: "Deactivated catechist", path: keyPath("/v1/lessons", fx.key), token: getToken(t, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	runHTTPTests(t, tests)
}
