package di

import (
	"flowboard/application/commands/bus"
	"flowboard/application/ports"
	querybus "flowboard/application/queries/bus"
	"flowboard/application/services"
	"flowboard/infrastructure/config"
	"flowboard/infrastructure/messaging"
	"flowboard/interfaces/http/rest"
	"flowboard/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Store      ports.BoardStore
	Sessions   *services.SessionManager
	Notices    *services.NoticeInbox
	Events     *messaging.LocalPublisher
	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus
	Metrics    *observability.Collector
	Tracer     *observability.Tracer
	Router     *rest.Router
}
