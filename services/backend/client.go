package backendsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/catechism/core"
	"github.com/trezcool/catechism/core/timetable"
	"github.com/trezcool/catechism/core/user"
)

// ResponseError is returned for any non-2xx response of the backend.
type ResponseError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend responded %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend responded %d", e.StatusCode)
}

// Client talks to the timetable REST API on behalf of a user.Session.
type Client struct {
	baseURL string
	rest    *rest.Client
	session user.Session
}

var (
	_ timetable.Source  = (*Client)(nil)
	_ timetable.Gateway = (*Client)(nil)
)

func NewClient(conf *core.Config, sess user.Session, httpClient ...*http.Client) *Client {
	hc := &http.Client{Timeout: conf.Backend.Timeout}
	if len(httpClient) > 0 && httpClient[0] != nil {
		hc = httpClient[0]
	}
	return &Client{
		baseURL: strings.TrimRight(conf.Backend.BaseURL, "/"),
		rest:    &rest.Client{HTTPClient: hc},
		session: sess,
	}
}

func (c *Client) Session() user.Session { return c.session }

func keyParams(key timetable.Key) map[string]string {
	return map[string]string{
		"gradeId": strconv.Itoa(key.GradeID),
		"yearId":  strconv.Itoa(key.YearID),
	}
}

func (c *Client) do(ctx context.Context, method rest.Method, path string, query map[string]string, body, out interface{}) error {
	req := rest.Request{
		Method:      method,
		BaseURL:     c.baseURL + "/" + path,
		Headers:     map[string]string{"Accept": "application/json"},
		QueryParams: query,
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		req.Body = data
		req.Headers["Content-Type"] = "application/json"
	}
	if c.session.IsAuthenticated() {
		req.Headers["Authorization"] = "Bearer " + c.session.Token
	}

	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return newResponseError(res)
	}
	if out != nil {
		if err = json.Unmarshal([]byte(res.Body), out); err != nil {
			return errors.Wrapf(err, "decoding %s response", path)
		}
	}
	return nil
}

// newResponseError reads the API's error body: {"error": msg} or {field: msg}.
// Client errors on the submitted data become validation errors.
func newResponseError(res *rest.Response) error {
	respErr := &ResponseError{StatusCode: res.StatusCode}

	var body map[string]interface{}
	if err := json.Unmarshal([]byte(res.Body), &body); err == nil {
		if msg, ok := body["error"].(string); ok {
			respErr.Message = msg
		} else if msg, ok := body["message"].(string); ok {
			respErr.Message = msg
		} else {
			respErr.Fields = make(map[string]string, len(body))
			for k, v := range body {
				respErr.Fields[k] = fmt.Sprint(v)
			}
		}
	} else {
		respErr.Message = strings.TrimSpace(res.Body)
	}
	if respErr.Message == "" && len(respErr.Fields) == 0 {
		respErr.Message = http.StatusText(res.StatusCode)
	}

	if res.StatusCode == http.StatusBadRequest || res.StatusCode == http.StatusConflict {
		names := make([]string, 0, len(respErr.Fields))
		for name := range respErr.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		flds := make([]core.FieldError, 0, len(names))
		for _, name := range names {
			flds = append(flds, core.FieldError{Field: name, Error: respErr.Fields[name]})
		}
		if respErr.Message == "" {
			return core.NewValidationError(nil, flds...)
		}
		return core.NewValidationError(respErr, flds...)
	}
	return respErr
}

// Login authenticates against the API and keeps the resulting session.
func (c *Client) Login(ctx context.Context, username, password string) (user.Session, error) {
	var tok struct {
		Token string `json:"token"`
	}
	creds := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, rest.Post, "users/login", nil, creds, &tok); err != nil {
		return user.Session{}, errors.Wrap(err, "logging in")
	}
	return c.Authenticate(ctx, tok.Token)
}

// Authenticate builds the session of token from the API's view of its user.
func (c *Client) Authenticate(ctx context.Context, token string) (user.Session, error) {
	c.session = user.Session{Token: token}
	var usr user.User
	if err := c.do(ctx, rest.Get, "users/me", nil, nil, &usr); err != nil {
		c.session = user.Session{}
		return user.Session{}, errors.Wrap(err, "getting current user")
	}
	c.session = user.NewSession(usr, token)
	return c.session, nil
}

func (c *Client) Lessons(ctx context.Context, key timetable.Key) ([]timetable.Lesson, error) {
	var res struct {
		Data struct {
			SlotDTOList []timetable.Lesson `json:"slotDTOList"`
		} `json:"data"`
	}
	if err := c.do(ctx, rest.Get, "lessons", keyParams(key), nil, &res); err != nil {
		return nil, err
	}
	if res.Data.SlotDTOList == nil {
		return []timetable.Lesson{}, nil
	}
	return res.Data.SlotDTOList, nil
}

func (c *Client) Sessions(ctx context.Context, key timetable.Key) ([]timetable.CalendarSession, error) {
	var res struct {
		Data []timetable.CalendarSession `json:"data"`
	}
	if err := c.do(ctx, rest.Get, "schedule", keyParams(key), nil, &res); err != nil {
		return nil, err
	}
	if res.Data == nil {
		return []timetable.CalendarSession{}, nil
	}
	return res.Data, nil
}

// Timetable returns the submitted timetable of key, or timetable.ErrNotFound.
func (c *Client) Timetable(ctx context.Context, key timetable.Key) ([]timetable.MappingResult, error) {
	var res struct {
		Data []timetable.MappingResult `json:"data"`
	}
	if err := c.do(ctx, rest.Get, "time-table-detail", keyParams(key), nil, &res); err != nil {
		if respErr, ok := errors.Cause(err).(*ResponseError); ok && respErr.StatusCode == http.StatusNotFound {
			return nil, timetable.ErrNotFound
		}
		return nil, err
	}
	return res.Data, nil
}

func (c *Client) SubmitTimetable(ctx context.Context, key timetable.Key, results []timetable.MappingResult) (string, error) {
	var res struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, rest.Post, "time-table-detail", keyParams(key), results, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}
