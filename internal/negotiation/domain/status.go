package domain

import (
	"errors"
	"fmt"
)

// Status is the closed set of negotiation states. The zero value is invalid.
type Status uint8

// remember to add new statuses to statusTable; the build fails otherwise
const (
	statusInvalid Status = iota
	StatusActive
	StatusAccepted
	StatusRejected
	StatusExpired
	StatusCancelled
	StatusCompleted

	statusCount
)

type statusAttrs struct {
	name     string
	terminal bool
	next     []Status
}

var statusTable = [...]statusAttrs{
	statusInvalid:   {name: ""},
	StatusActive:    {name: "active", next: []Status{StatusActive, StatusAccepted, StatusRejected, StatusExpired, StatusCancelled}},
	StatusAccepted:  {name: "accepted", terminal: true, next: []Status{StatusCompleted}},
	StatusRejected:  {name: "rejected", terminal: true},
	StatusExpired:   {name: "expired", terminal: true},
	StatusCancelled: {name: "cancelled", terminal: true},
	StatusCompleted: {name: "completed", terminal: true},
}

// Fails to compile when statusTable and the constants disagree in length.
var _ = [1]struct{}{}[int(statusCount)-len(statusTable)]

var ErrInvalidStatus = errors.New("invalid negotiation status")

// ParseStatus accepts the wire names only.
func ParseStatus(s string) (Status, error) {
	for i := StatusActive; i < statusCount; i++ {
		if statusTable[i].name == s {
			return i, nil
		}
	}
	return statusInvalid, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Statuses lists every valid status in declaration order.
func Statuses() []Status {
	result := make([]Status, 0, statusCount-1)
	for i := StatusActive; i < statusCount; i++ {
		result = append(result, i)
	}
	return result
}

func (s Status) IsValid() bool {
	return s > statusInvalid && s < statusCount
}

// IsTerminal reports whether no actor-driven transition can leave s.
// accepted is terminal for the parties; only fulfilment moves it to completed.
func (s Status) IsTerminal() bool {
	return s.IsValid() && statusTable[s].terminal
}

// CanTransitionTo reports whether the state machine has an edge s -> to.
func (s Status) CanTransitionTo(to Status) bool {
	if !s.IsValid() {
		return false
	}
	for _, candidate := range statusTable[s].next {
		if candidate == to {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	if !s.IsValid() {
		return fmt.Sprintf("status(%d)", uint8(s))
	}
	return statusTable[s].name
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, uint8(s))
	}
	return []byte(statusTable[s].name), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
