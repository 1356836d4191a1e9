package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/catechism/core/timetable"
	"github.com/trezcool/catechism/core/user"
)

type timetableApi struct {
	svc    *timetable.Service
	usrSvc *user.Service
}

func registerTimetableAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *timetable.Service, usrSvc *user.Service) {
	api := timetableApi{svc: svc, usrSvc: usrSvc}
	view := requireCapability(user.CapViewTimetable, usrSvc)
	plan := requireCapability(user.CapPlanTimetable, usrSvc)
	submit := requireCapability(user.CapSubmitTimetable, usrSvc)

	g.GET("/lessons", api.lessons, jwt, view)
	g.GET("/schedule", api.schedule, jwt, view)

	tg := g.Group("/time-table-detail", jwt)
	tg.GET("", api.retrieve, view)
	tg.POST("", api.submit, submit)
	tg.POST("/capacity", api.capacity, plan)
	tg.POST("/auto-map", api.autoMap, plan)
}

type (
	DataResponse struct {
		Data interface{} `json:"data"`
	}

	LessonsData struct {
		SlotDTOList []timetable.Lesson `json:"slotDTOList"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}
)

// Handlers

func (api *timetableApi) lessons(ctx echo.Context) error {
	key, err := bindKey(ctx)
	if err != nil {
		return err
	}
	lessons, err := api.svc.Lessons(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	return ctx.JSON(http.StatusOK, DataResponse{Data: LessonsData{SlotDTOList: lessons}})
}

func (api *timetableApi) schedule(ctx echo.Context) error {
	key, err := bindKey(ctx)
	if err != nil {
		return err
	}
	sessions, err := api.svc.Sessions(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "querying calendar sessions")
	}
	return ctx.JSON(http.StatusOK, DataResponse{Data: sessions})
}

func (api *timetableApi) retrieve(ctx echo.Context) error {
	key, err := bindKey(ctx)
	if err != nil {
		return err
	}
	sub, err := api.svc.Timetable(ctx.Request().Context(), key)
	if err != nil {
		if errors.Cause(err) == timetable.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting timetable")
	}
	return ctx.JSON(http.StatusOK, DataResponse{Data: sub.Details})
}

func (api *timetableApi) capacity(ctx echo.Context) error {
	key, err := bindKey(ctx)
	if err != nil {
		return err
	}
	acts := timetable.NewActivities()
	if err = bindJSON(ctx, &acts, true /* optional */); err != nil {
		return err
	}

	capacity, err := api.svc.Capacity(ctx.Request().Context(), key, acts)
	if err != nil {
		return errors.Wrap(err, "computing capacity")
	}
	return ctx.JSON(http.StatusOK, capacity)
}

func (api *timetableApi) autoMap(ctx echo.Context) error {
	key, err := bindKey(ctx)
	if err != nil {
		return err
	}
	mode, err := timetable.ParsePreviewMode(ctx.QueryParam("mode"))
	if err != nil {
		return err
	}
	if ctx.QueryParam("mode") == "" {
		mode = api.svc.DefaultPreviewMode()
	}
	acts := timetable.NewActivities()
	if err = bindJSON(ctx, &acts, true /* optional */); err != nil {
		return err
	}

	plan, err := api.svc.Plan(ctx.Request().Context(), key, acts, mode)
	if err != nil {
		return errors.Wrap(err, "planning timetable")
	}
	return ctx.JSON(http.StatusOK, plan)
}

func (api *timetableApi) submit(ctx echo.Context) error {
	key, err := bindKey(ctx)
	if err != nil {
		return err
	}
	var results []timetable.MappingResult
	if err = bindJSON(ctx, &results); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if _, err = api.svc.Submit(ctx.Request().Context(), key, results, usr); err != nil {
		return errors.Wrap(err, "submitting timetable")
	}
	return ctx.JSON(http.StatusCreated, MessageResponse{Message: "timetable submitted"})
}
