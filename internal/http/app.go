package http

import (
	"context"

	"paylesscars/internal/events"
	"paylesscars/platform/config"
	"paylesscars/platform/logger"
)

// RouterConfig is the slice of configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs /api/ready. With memory storage it always succeeds.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type HealthFunc func(ctx context.Context) error

func (f HealthFunc) Ping(ctx context.Context) error { return f(ctx) }

// App is assembled in cmd/api and consumed by the router.
type App struct {
	Config   RouterConfig
	Logger   *logger.Logger
	Health   HealthChecker
	EventBus events.Bus
	Modules  []Module
}

// SubscribeModules registers event handlers for every EventModule.
func (a *App) SubscribeModules() {
	for _, m := range a.Modules {
		if em, ok := m.(EventModule); ok {
			em.RegisterHandlers(a.EventBus)
			a.Logger.Info("module subscribed to events", "module", m.Name())
		}
	}
}

// CloseModules releases long-lived module resources, in reverse order.
func (a *App) CloseModules() {
	for i := len(a.Modules) - 1; i >= 0; i-- {
		if c, ok := a.Modules[i].(Closer); ok {
			c.Close()
		}
	}
}
