package backendsvc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/catechism/core"
	"github.com/trezcool/catechism/core/timetable"
	"github.com/trezcool/catechism/core/user"
	"github.com/trezcool/catechism/tests"
)

const token = "s3cr3t"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conf := testutil.NewConfig()
	conf.Backend.BaseURL = srv.URL + "/v1/"
	return NewClient(conf, user.Session{UserID: "1", Roles: []string{user.RoleCatechist}, Token: token}, srv.Client())
}

func writeJSON(t *testing.T, w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestClient_Lessons(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/lessons", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("gradeId"))
		assert.Equal(t, "7", r.URL.Query().Get("yearId"))
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))

		_, _ = io.WriteString(w, `{"data": {"slotDTOList": [
			{"id": 1, "name": "Creation", "slotType": "lesson", "sessionUnits": 1},
			{"id": 2, "name": "Exodus", "slotType": "lesson_and_exam", "examName": "Quiz 1", "sessionUnits": 0.5}
		]}}`)
	})

	lessons, err := client.Lessons(context.Background(), timetable.Key{GradeID: 3, YearID: 7})
	require.NoError(t, err)
	assert.Equal(t, []timetable.Lesson{
		{ID: 1, Name: "Creation", SlotType: timetable.SlotLesson, SessionUnits: 1},
		{ID: 2, Name: "Exodus", SlotType: timetable.SlotLessonAndExam, ExamName: null.StringFrom("Quiz 1"), SessionUnits: 0.5},
	}, lessons)
}

func TestClient_Sessions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/schedule", r.URL.Path)
		_, _ = io.WriteString(w, `{"data": [{"id": 10, "date": "2026-09-06", "orderSchedule": 1, "name": "Opening"}]}`)
	})

	sessions, err := client.Sessions(context.Background(), timetable.Key{GradeID: 3, YearID: 7})
	require.NoError(t, err)
	assert.Equal(t, []timetable.CalendarSession{
		{ID: 10, Date: timetable.NewDate(2026, 9, 6), OrderSchedule: 1, Name: null.StringFrom("Opening")},
	}, sessions)
}

func TestClient_SubmitTimetable(t *testing.T) {
	results := []timetable.MappingResult{
		{OrderSchedule: 1, LessonID: null.IntFrom(1)},
		{OrderSchedule: 2, Note: "Field trip"},
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/time-table-detail", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got []timetable.MappingResult
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, results, got)
		writeJSON(t, w, http.StatusCreated, map[string]string{"message": "timetable submitted"})
	})

	msg, err := client.SubmitTimetable(context.Background(), timetable.Key{GradeID: 3, YearID: 7}, results)
	require.NoError(t, err)
	assert.Equal(t, "timetable submitted", msg)
}

func TestClient_errors(t *testing.T) {
	key := timetable.Key{GradeID: 3, YearID: 7}

	t.Run("validation error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusBadRequest, map[string]string{"error": timetable.ErrYearStarted.Error()})
		})
		_, err := client.SubmitTimetable(context.Background(), key, []timetable.MappingResult{{OrderSchedule: 1}})
		require.Error(t, err)
		assert.True(t, core.IsValidationError(err))
		assert.Contains(t, err.Error(), timetable.ErrYearStarted.Error())
	})

	t.Run("field errors", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusBadRequest, map[string]string{"yearId": "yearId must be greater than 0"})
		})
		_, err := client.Lessons(context.Background(), key)
		vErr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "want *core.ValidationError, got %T", err)
		assert.Equal(t, []core.FieldError{{Field: "yearId", Error: "yearId must be greater than 0"}}, vErr.Fields)
	})

	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
		})
		_, err := client.Sessions(context.Background(), key)
		respErr, ok := errors.Cause(err).(*ResponseError)
		require.True(t, ok, "want *ResponseError, got %T", err)
		assert.Equal(t, http.StatusInternalServerError, respErr.StatusCode)
		assert.False(t, core.IsValidationError(err))
	})

	t.Run("no timetable", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusNotFound, map[string]string{"error": "timetable not found"})
		})
		_, err := client.Timetable(context.Background(), key)
		assert.Equal(t, timetable.ErrNotFound, err)
	})
}

func TestClient_Login(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/users/login":
			writeJSON(t, w, http.StatusOK, map[string]string{"token": "fresh"})
		case "/v1/users/me":
			assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
			writeJSON(t, w, http.StatusOK, user.User{ID: "42", Username: "joe", Roles: []string{user.RoleAdmin}, IsActive: true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	sess, err := client.Login(context.Background(), "joe", "pwd")
	require.NoError(t, err)
	assert.Equal(t, user.Session{UserID: "42", Username: "joe", Roles: []string{user.RoleAdmin}, Token: "fresh"}, sess)
	assert.True(t, client.Session().Can(user.CapManageUsers))
}
