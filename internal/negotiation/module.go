// Package negotiation provides the negotiations bounded context module.
package negotiation

import (
	"time"

	"paylesscars/internal/events"
	apphttp "paylesscars/internal/http"
	"paylesscars/internal/negotiation/handler"
	"paylesscars/internal/negotiation/ports"
	"paylesscars/internal/negotiation/service"
	"paylesscars/platform/logger"
	"paylesscars/platform/validator"
)

// Module is the negotiations bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the negotiations module with all its dependencies.
// scheduler may be nil, in which case only the periodic sweep expires negotiations.
func NewModule(
	repo ports.Repository,
	eventBus events.Bus,
	scheduler ports.ExpiryScheduler,
	ttl time.Duration,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	var opts []service.Option
	if scheduler != nil {
		opts = append(opts, service.WithScheduler(scheduler))
	}
	svc := service.New(repo, eventBus, ttl, log, opts...)

	return &Module{handler: handler.New(svc, val), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "negotiations"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts negotiation routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/negotiations"))
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
