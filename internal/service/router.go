package service

import (
	"nearmiss-bot/internal/constant"
	"nearmiss-bot/internal/dto"
	"nearmiss-bot/internal/entity"
)

// Route names the handler an event is dispatched to.
type Route string

const (
	RouteStart       Route = "start"
	RouteReport      Route = "report"
	RouteCancel      Route = "cancel"
	RouteIdle        Route = "idle"
	RouteName        Route = "name"
	RouteLocation    Route = "location"
	RouteArea        Route = "area"
	RouteSeverity    Route = "severity"
	RouteDescription Route = "description"
	RouteMedia       Route = "media"
	RouteStaleButton Route = "stale_button"
	RouteFallback    Route = "fallback"
)

type routeKey struct {
	kind  dto.EventKind
	stage entity.Stage
}

var stageRoutes = map[routeKey]Route{
	{dto.EventKindText, entity.StageName}:        RouteName,
	{dto.EventKindButton, entity.StageLocation}:  RouteLocation,
	{dto.EventKindButton, entity.StageArea}:      RouteArea,
	{dto.EventKindButton, entity.StageSeverity}:  RouteSeverity,
	{dto.EventKindText, entity.StageDescription}: RouteDescription,
	{dto.EventKindPhoto, entity.StageMedia}:      RouteMedia,
	{dto.EventKindVideo, entity.StageMedia}:      RouteMedia,
	{dto.EventKindText, entity.StageMedia}:       RouteMedia,
}

var commandRoutes = map[string]Route{
	constant.CommandStart:  RouteStart,
	constant.CommandReport: RouteReport,
	constant.CommandCancel: RouteCancel,
}

// RouteEvent picks a handler from the event kind and the session stage.
// Known commands win over every stage handler.
func RouteEvent(kind dto.EventKind, command string, stage entity.Stage) Route {
	if kind == dto.EventKindCommand {
		if route, ok := commandRoutes[command]; ok {
			return route
		}
		if stage == entity.StageIdle {
			return RouteIdle
		}
		return RouteFallback
	}

	if route, ok := stageRoutes[routeKey{kind: kind, stage: stage}]; ok {
		return route
	}

	// a button that no longer matches the stage is acknowledged and dropped
	if kind == dto.EventKindButton {
		return RouteStaleButton
	}
	if stage == entity.StageIdle {
		return RouteIdle
	}
	return RouteFallback
}
