// Package http holds the pieces every bounded context plugs into: the Module
// contract, the router context and the assembled App.
package http

import (
	"paylesscars/internal/events"

	"github.com/gin-gonic/gin"
)

// Module is a bounded context with HTTP routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// EventModule is a Module that also reacts to domain events.
type EventModule interface {
	Module
	RegisterHandlers(bus events.Subscriber)
}

// Closer is a Module holding connections that must end before the server
// can drain, such as open event streams.
type Closer interface {
	Close()
}

// RouterContext is handed to each module during route registration.
type RouterContext struct {
	// V1 is /api/v1 without authentication.
	V1 *gin.RouterGroup
	// Protected is /api/v1 behind the access-token middleware.
	Protected *gin.RouterGroup
	// Admin is /api/v1/admin and additionally requires the admin role.
	Admin *gin.RouterGroup
}
