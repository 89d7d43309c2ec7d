package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Requests ---

// CreateNegotiationRequest opens a negotiation with the buyer's first offer.
type CreateNegotiationRequest struct {
	VehicleID uuid.UUID       `json:"vehicleId" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency  *string         `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	Message   *string         `json:"message,omitempty" validate:"omitempty,max=1000"`
}

// SubmitOfferRequest is a counter-offer. Currency defaults to the
// negotiation's currency.
type SubmitOfferRequest struct {
	Amount   decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency *string         `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	Message  *string         `json:"message,omitempty" validate:"omitempty,max=1000"`
}

// RejectRequest declines the negotiation outright.
type RejectRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// UpsertVehicleRequest registers catalog data for a vehicle.
type UpsertVehicleRequest struct {
	Title           string       `json:"title" validate:"required,max=200"`
	AskingPrice     MoneyRequest `json:"askingPrice" validate:"required"`
	PrimaryImageURL string       `json:"primaryImageUrl,omitempty" validate:"omitempty,url"`
	DealerID        uuid.UUID    `json:"dealerId" validate:"required"`
	DealerName      string       `json:"dealerName,omitempty" validate:"omitempty,max=200"`
}

type MoneyRequest struct {
	Amount   decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency string          `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
}

// ListParams are the query parameters of the list endpoint.
type ListParams struct {
	Status   string `form:"status" validate:"omitempty,oneof=active accepted rejected expired cancelled completed"`
	Party    string `form:"party" validate:"omitempty,oneof=buyer dealer"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// --- Responses ---

type MoneyResponse struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type OfferResponse struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	OfferedBy string          `json:"offeredBy"`
	Message   *string         `json:"message,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type VehicleResponse struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title"`
	AskingPrice     MoneyResponse `json:"askingPrice"`
	PrimaryImageURL string        `json:"primaryImageUrl,omitempty"`
	DealerID        uuid.UUID     `json:"dealerId"`
}

type PartyResponse struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName,omitempty"`
}

// NegotiationResponse carries the full aggregate so clients can replace
// their cached copy instead of patching it.
type NegotiationResponse struct {
	ID              uuid.UUID       `json:"id"`
	Vehicle         VehicleResponse `json:"vehicle"`
	Buyer           PartyResponse   `json:"buyer"`
	Dealer          PartyResponse   `json:"dealer"`
	Status          string          `json:"status"`
	IsActive        bool            `json:"isActive"`
	Offers          []OfferResponse `json:"offers"`
	CurrentOffer    *OfferResponse  `json:"currentOffer,omitempty"`
	AcceptedPrice   *MoneyResponse  `json:"acceptedPrice,omitempty"`
	RejectionReason *string         `json:"rejectionReason,omitempty"`
	ExpiresAt       time.Time       `json:"expiresAt"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Version         int64           `json:"version"`
}

type ListNegotiationsResponse struct {
	Items    []NegotiationResponse `json:"items"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"pageSize"`
	Total    int                   `json:"total"`
}

// ErrorResponse mirrors httpkit.ErrorResponse on the decoding side.
type ErrorResponse struct {
	Error   string          `json:"error"`
	Kind    string          `json:"kind,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}
