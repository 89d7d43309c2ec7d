package transport

import (
	"fmt"

	"paylesscars/internal/negotiation/domain"

	"github.com/samber/lo"
)

func ToMoneyResponse(m domain.Money) MoneyResponse {
	return MoneyResponse{Amount: m.Amount, Currency: m.Currency.String()}
}

func ToOfferResponse(o domain.Offer) OfferResponse {
	return OfferResponse{
		ID:        o.ID,
		Amount:    o.Amount.Amount,
		Currency:  o.Amount.Currency.String(),
		OfferedBy: o.OfferedBy.String(),
		Message:   o.Message,
		CreatedAt: o.CreatedAt,
	}
}

func ToVehicleResponse(v domain.VehicleRef) VehicleResponse {
	return VehicleResponse{
		ID:              v.ID,
		Title:           v.Title,
		AskingPrice:     ToMoneyResponse(v.AskingPrice),
		PrimaryImageURL: v.PrimaryImageURL,
		DealerID:        v.DealerID,
	}
}

func ToNegotiationResponse(n domain.Negotiation) NegotiationResponse {
	resp := NegotiationResponse{
		ID:              n.ID,
		Vehicle:         ToVehicleResponse(n.Vehicle),
		Buyer:           PartyResponse{ID: n.Buyer.ID, DisplayName: n.Buyer.DisplayName},
		Dealer:          PartyResponse{ID: n.Dealer.ID, DisplayName: n.Dealer.DisplayName},
		Status:          n.Status.String(),
		IsActive:        n.IsActive(),
		Offers:          lo.Map(n.Offers, func(o domain.Offer, _ int) OfferResponse { return ToOfferResponse(o) }),
		RejectionReason: n.RejectionReason,
		ExpiresAt:       n.ExpiresAt,
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
		Version:         n.Version,
	}
	if current, ok := n.CurrentOffer(); ok {
		resp.CurrentOffer = lo.ToPtr(ToOfferResponse(current))
	}
	if n.AcceptedPrice != nil {
		resp.AcceptedPrice = lo.ToPtr(ToMoneyResponse(*n.AcceptedPrice))
	}
	return resp
}

func ToListResponse(items []domain.Negotiation, page, pageSize, total int) ListNegotiationsResponse {
	return ListNegotiationsResponse{
		Items:    lo.Map(items, func(n domain.Negotiation, _ int) NegotiationResponse { return ToNegotiationResponse(n) }),
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}
}

// FromNegotiationResponse rebuilds the aggregate from the wire. The derived
// currentOffer and isActive fields are recomputed, not trusted.
func FromNegotiationResponse(resp NegotiationResponse) (domain.Negotiation, error) {
	status, err := domain.ParseStatus(resp.Status)
	if err != nil {
		return domain.Negotiation{}, err
	}

	asking, err := fromMoney(resp.Vehicle.AskingPrice)
	if err != nil {
		return domain.Negotiation{}, fmt.Errorf("vehicle.askingPrice: %w", err)
	}

	offers := make([]domain.Offer, 0, len(resp.Offers))
	for i, o := range resp.Offers {
		offer, err := fromOffer(o)
		if err != nil {
			return domain.Negotiation{}, fmt.Errorf("offers[%d]: %w", i, err)
		}
		offers = append(offers, offer)
	}

	n := domain.Negotiation{
		ID: resp.ID,
		Vehicle: domain.VehicleRef{
			ID:              resp.Vehicle.ID,
			Title:           resp.Vehicle.Title,
			AskingPrice:     asking,
			PrimaryImageURL: resp.Vehicle.PrimaryImageURL,
			DealerID:        resp.Vehicle.DealerID,
			DealerName:      resp.Dealer.DisplayName,
		},
		Buyer:           domain.PartyRef{ID: resp.Buyer.ID, DisplayName: resp.Buyer.DisplayName},
		Dealer:          domain.PartyRef{ID: resp.Dealer.ID, DisplayName: resp.Dealer.DisplayName},
		Status:          status,
		Offers:          offers,
		RejectionReason: resp.RejectionReason,
		ExpiresAt:       resp.ExpiresAt,
		CreatedAt:       resp.CreatedAt,
		UpdatedAt:       resp.UpdatedAt,
		Version:         resp.Version,
	}

	if resp.AcceptedPrice != nil {
		price, err := fromMoney(*resp.AcceptedPrice)
		if err != nil {
			return domain.Negotiation{}, fmt.Errorf("acceptedPrice: %w", err)
		}
		n.AcceptedPrice = &price
	}

	return n, nil
}

func fromMoney(m MoneyResponse) (domain.Money, error) {
	unit, err := domain.ParseCurrency(m.Currency)
	if err != nil {
		return domain.Money{}, err
	}
	return domain.Money{Amount: m.Amount, Currency: unit}, nil
}

func fromOffer(o OfferResponse) (domain.Offer, error) {
	party, err := domain.ParseParty(o.OfferedBy)
	if err != nil {
		return domain.Offer{}, err
	}
	amount, err := fromMoney(MoneyResponse{Amount: o.Amount, Currency: o.Currency})
	if err != nil {
		return domain.Offer{}, err
	}
	return domain.Offer{
		ID:        o.ID,
		Amount:    amount,
		OfferedBy: party,
		Message:   o.Message,
		CreatedAt: o.CreatedAt,
	}, nil
}
