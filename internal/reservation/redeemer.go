// Package reservation holds short-lived, per-redeemer claims on coupon codes.
// A claim counts against a coupon's remaining quantity until it is released
// or its TTL runs out.
package reservation

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidRedeemer is returned when a redeemer has no kind or id.
var ErrInvalidRedeemer = errors.New("reservation: redeemer kind and id are required")

// Redeemer identifies whoever holds a reservation, usually a user.
type Redeemer struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Key is the canonical "kind:id" form used in storage keys.
func (r Redeemer) Key() string {
	return strings.ToLower(strings.TrimSpace(r.Kind)) + ":" + strings.TrimSpace(r.ID)
}

func (r Redeemer) validate() error {
	if strings.TrimSpace(r.Kind) == "" || strings.TrimSpace(r.ID) == "" {
		return ErrInvalidRedeemer
	}
	return nil
}

// Normalized returns r with the kind lower-cased and both parts trimmed.
func (r Redeemer) Normalized() Redeemer {
	return Redeemer{Kind: strings.ToLower(strings.TrimSpace(r.Kind)), ID: strings.TrimSpace(r.ID)}
}

// Reservation is an active claim.
type Reservation struct {
	Code       string    `json:"code"`
	Redeemer   Redeemer  `json:"redeemer"`
	ReservedAt time.Time `json:"reservedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}
