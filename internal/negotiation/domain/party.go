package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Party identifies which side of a negotiation acted.
type Party string

const (
	PartyBuyer  Party = "buyer"
	PartyDealer Party = "dealer"
)

func ParseParty(s string) (Party, error) {
	switch p := Party(s); p {
	case PartyBuyer, PartyDealer:
		return p, nil
	}
	return "", fmt.Errorf("invalid party %q", s)
}

// Counterpart returns the other side.
func (p Party) Counterpart() Party {
	if p == PartyBuyer {
		return PartyDealer
	}
	return PartyBuyer
}

func (p Party) String() string { return string(p) }

// PartyRef references a user owned by the auth collaborator. DisplayName is
// informational only.
type PartyRef struct {
	ID          uuid.UUID
	DisplayName string
}
