package echoapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/catechism/core"
	"github.com/trezcool/catechism/core/timetable"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindKey reads the gradeId and yearId query params, whatever the request method.
func bindKey(ctx echo.Context) (timetable.Key, error) {
	var (
		key  timetable.Key
		flds []core.FieldError
	)
	parse := func(name string, dst *int) {
		raw := strings.TrimSpace(ctx.QueryParam(name))
		if raw == "" {
			flds = append(flds, core.FieldError{Field: name, Error: name + " is a required field"})
			return
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			flds = append(flds, core.FieldError{Field: name, Error: name + " must be an integer"})
			return
		}
		*dst = v
	}
	parse("gradeId", &key.GradeID)
	parse("yearId", &key.YearID)

	if flds != nil {
		return timetable.Key{}, core.NewValidationError(timetable.ErrInvalidKey, flds...)
	}
	return key, nil
}

// bindJSON decodes the request body into v. An empty body leaves v untouched when optional.
func bindJSON(ctx echo.Context, v interface{}, optional ...bool) error {
	err := json.NewDecoder(ctx.Request().Body).Decode(v)
	if err == io.EOF && len(optional) > 0 && optional[0] {
		return nil
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	return nil
}
