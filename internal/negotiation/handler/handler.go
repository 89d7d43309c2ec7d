package handler

import (
	"net/http"

	"paylesscars/internal/negotiation/domain"
	"paylesscars/internal/negotiation/ports"
	"paylesscars/internal/negotiation/service"
	"paylesscars/internal/negotiation/transport"
	"paylesscars/platform/httpkit"
	"paylesscars/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidCurrency  = "invalid currency"
)

// Handler handles HTTP requests for negotiations.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new negotiations handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers participant routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/offers", h.SubmitOffer)
	rg.POST("/:id/accept", h.Accept)
	rg.POST("/:id/reject", h.Reject)
	rg.POST("/:id/cancel", h.Cancel)
}

// RegisterAdminRoutes registers operator routes.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.PUT("/vehicles/:id", h.UpsertVehicle)
	rg.POST("/negotiations/:id/complete", h.Complete)
}

func (h *Handler) List(c *gin.Context) {
	var req transport.ListParams
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	query, err := listQuery(req)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	page, err := h.svc.List(c.Request.Context(), identity.UserID(), query)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToListResponse(page.Items, page.Page, page.PageSize, page.Total))
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateNegotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	amount, ok := money(c, req.Amount, req.Currency)
	if !ok {
		return
	}

	n, err := h.svc.Create(c.Request.Context(), domain.PartyRef{ID: identity.UserID()}, ports.CreateInput{
		VehicleID: req.VehicleID,
		Amount:    amount,
		Message:   req.Message,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ToNegotiationResponse(n))
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	n, err := h.svc.Get(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToNegotiationResponse(n))
}

func (h *Handler) SubmitOffer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req transport.SubmitOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	amount, ok := money(c, req.Amount, req.Currency)
	if !ok {
		return
	}

	n, err := h.svc.SubmitOffer(c.Request.Context(), identity.UserID(), id, ports.OfferInput{Amount: amount, Message: req.Message})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToNegotiationResponse(n))
}

func (h *Handler) Accept(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	n, err := h.svc.Accept(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToNegotiationResponse(n))
}

func (h *Handler) Reject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req transport.RejectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	n, err := h.svc.Reject(c.Request.Context(), identity.UserID(), id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToNegotiationResponse(n))
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	n, err := h.svc.Cancel(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToNegotiationResponse(n))
}

func (h *Handler) Complete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	n, err := h.svc.Complete(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToNegotiationResponse(n))
}

func (h *Handler) UpsertVehicle(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req transport.UpsertVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	asking, err := domain.NewMoney(req.AskingPrice.Amount.String(), req.AskingPrice.Currency)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidCurrency, nil)
		return
	}

	vehicle := domain.VehicleRef{
		ID:              id,
		Title:           req.Title,
		AskingPrice:     asking,
		PrimaryImageURL: req.PrimaryImageURL,
		DealerID:        req.DealerID,
		DealerName:      req.DealerName,
	}
	if err := h.svc.UpsertVehicle(c.Request.Context(), vehicle); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToVehicleResponse(vehicle))
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}

// money leaves the currency unset when the request omits it, so the service
// can default it from the vehicle or the negotiation.
func money(c *gin.Context, amount decimal.Decimal, code *string) (domain.Money, bool) {
	m := domain.Money{Amount: amount}
	if code == nil {
		return m, true
	}

	unit, err := domain.ParseCurrency(*code)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidCurrency, err.Error())
		return domain.Money{}, false
	}
	m.Currency = unit
	return m, true
}

func listQuery(req transport.ListParams) (ports.ListQuery, error) {
	query := ports.ListQuery{Page: req.Page, PageSize: req.PageSize}

	if req.Status != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			return ports.ListQuery{}, err
		}
		query.Filter.Status = &status
	}
	if req.Party != "" {
		party, err := domain.ParseParty(req.Party)
		if err != nil {
			return ports.ListQuery{}, err
		}
		query.Filter.Party = &party
	}
	return query, nil
}
