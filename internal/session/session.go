// Package session models the identity collaborator: authenticated users
// and their subscription tier. Tier gating lives here; the extraction
// core never inspects tiers itself.
package session

import (
	"errors"
	"time"
)

// Tier is a subscription plan level.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
	TierTeam Tier = "team"
)

var tierRank = map[Tier]int{
	TierFree: 0,
	TierPro:  1,
	TierTeam: 2,
}

// ErrUnknownTier is returned by ParseTier for unrecognized plan names.
var ErrUnknownTier = errors.New("unknown subscription tier")

// ParseTier validates a tier name.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if _, ok := tierRank[t]; !ok {
		return "", ErrUnknownTier
	}
	return t, nil
}

// User is one authenticated identity.
type User struct {
	ID        string    `json:"id"`
	Token     string    `json:"-"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}

// HasAccess reports whether the user's tier meets the required one.
// Tiers are ordered free < pro < team.
func (u *User) HasAccess(required Tier) bool {
	return tierRank[u.Tier] >= tierRank[required]
}
