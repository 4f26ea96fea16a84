package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kanisa/core/event"
	"github.com/trezcool/kanisa/core/member"
	"github.com/trezcool/kanisa/core/report"
)

type reportApi struct {
	svc report.Service
}

// ScopeResponse is a member's resolved leadership scope with its display
// label and a routing hint for report surfaces.
type ScopeResponse struct {
	report.Scope
	IsLeader bool   `json:"is_leader"`
	Label    string `json:"label"`
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc report.Service) {
	api := reportApi{svc: svc}

	rg := g.Group("/reports", jwt)

	rg.GET("/scope", api.scope)
	rg.GET("/events/:id", api.eventReport)
	rg.GET("/events/:id/compare", api.compare)

	// manager-only surfaces
	rg.GET("/custom", api.rangeReport, managerMiddleware())
	rg.GET("/events/:id/status", api.status, managerMiddleware())
	rg.POST("/events/:id/publish", api.publish, managerMiddleware())
	rg.POST("/events/:id/unpublish", api.unpublish, managerMiddleware())
}

// Handlers

func (api *reportApi) scope(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	scope, err := api.svc.ResolveScope(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return trapNotFound(err, "resolving scope")
	}
	return ctx.JSON(http.StatusOK, ScopeResponse{
		Scope:    scope,
		IsLeader: report.IsLeader(scope),
		Label:    report.DescribeScope(scope),
	})
}

func (api *reportApi) eventReport(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	res, err := api.svc.EventReport(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return trapNotFound(err, "computing event report")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *reportApi) compare(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	trend, err := api.svc.Compare(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return trapNotFound(err, "computing trend")
	}
	return ctx.JSON(http.StatusOK, trend)
}

func (api *reportApi) rangeReport(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var q report.RangeQuery
	if err = ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to RangeQuery")
	}

	res, err := api.svc.RangeReport(ctx.Request().Context(), claims.Subject, q)
	if err != nil {
		return trapNotFound(err, "computing range report")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *reportApi) status(ctx echo.Context) error {
	pub, err := api.svc.Status(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return trapNotFound(err, "getting publication status")
	}
	return ctx.JSON(http.StatusOK, pub)
}

func (api *reportApi) publish(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	pub, err := api.svc.Publish(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return trapNotFound(err, "publishing report")
	}
	return ctx.JSON(http.StatusOK, pub)
}

func (api *reportApi) unpublish(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	pub, err := api.svc.Unpublish(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return trapNotFound(err, "unpublishing report")
	}
	return ctx.JSON(http.StatusOK, pub)
}

// trapNotFound maps missing event/member errors to a 404.
func trapNotFound(err error, msg string) error {
	switch errors.Cause(err) {
	case event.ErrNotFound, member.ErrNotFound:
		return errHttpNotFound
	}
	return errors.Wrap(err, msg)
}
