package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kimaro/shulebook/core/activity"
	"github.com/kimaro/shulebook/core/user"
)

type activityApi struct {
	svc activity.ServiceInterface
}

func registerActivityAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc activity.ServiceInterface) {
	api := activityApi{svc: svc}

	ag := g.Group("/activities", jwt)
	ag.GET("", api.query, permissionMiddleware(user.ModuleActivities, user.ActionView))
}

func (api *activityApi) query(ctx echo.Context) error {
	filter := new(activity.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []activity.Activity{})
	}

	entries, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	if entries == nil {
		entries = []activity.Activity{}
	}
	return ctx.JSON(http.StatusOK, entries)
}
