// Package sse streams negotiation updates to connected participants as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"

	"paylesscars/platform/httpkit"
	"paylesscars/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType names the SSE event sent to the browser.
type EventType string

const (
	EventNegotiationOpened EventType = "negotiation_opened"
	EventOfferSubmitted    EventType = "offer_submitted"
	EventNegotiationStatus EventType = "negotiation_status"
	eventConnected         EventType = "connected"
)

const clientBufferSize = 32

// Event is the payload written to the stream.
type Event struct {
	Type          EventType `json:"type"`
	NegotiationID uuid.UUID `json:"negotiationId"`
	Message       string    `json:"message,omitempty"`
	Data          any       `json:"data,omitempty"`
}

type client struct {
	userID uuid.UUID
	events chan Event
}

// Service tracks open streams per user.
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client
	closed  bool
	log     *logger.Logger
}

// New creates an empty hub.
func New(log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		clients: make(map[uuid.UUID][]*client),
		log:     log,
	}
}

func (s *Service) addClient(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.clients[c.userID] = append(s.clients[c.userID], c)
	return true
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.userID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.userID] = append(clients[:i], clients[i+1:]...)
			close(c.events)
			break
		}
	}
	if len(s.clients[c.userID]) == 0 {
		delete(s.clients, c.userID)
	}
}

// Publish sends event to every stream the user has open. Slow readers lose
// events rather than block the publisher.
func (s *Service) Publish(userID uuid.UUID, event Event) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delivered := 0
	for _, c := range s.clients[userID] {
		select {
		case c.events <- event:
			delivered++
		default:
			s.log.Warn("sse buffer full", "userId", userID, "event", event.Type)
		}
	}
	return delivered
}

// PublishToParticipants sends event to both sides of a negotiation.
func (s *Service) PublishToParticipants(buyerID, dealerID uuid.UUID, event Event) {
	s.Publish(buyerID, event)
	if dealerID != buyerID {
		s.Publish(dealerID, event)
	}
}

// Connected reports how many streams the user has open.
func (s *Service) Connected(userID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID])
}

// Handler streams events for the authenticated user until the request ends.
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := httpkit.MustGetIdentity(c)
		if identity == nil {
			return
		}

		cl := &client{userID: identity.UserID(), events: make(chan Event, clientBufferSize)}
		if !s.addClient(cl) {
			httpkit.Error(c, http.StatusServiceUnavailable, "stream closed", nil)
			return
		}
		defer s.removeClient(cl)

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		c.SSEvent(string(eventConnected), gin.H{"userId": cl.userID})
		c.Writer.Flush()
		s.log.Debug("sse client connected", "userId", cl.userID)

		done := c.Request.Context().Done()
		for {
			select {
			case <-done:
				s.log.Debug("sse client disconnected", "userId", cl.userID)
				return
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					continue
				}
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close ends every open stream and refuses new ones.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
}
