// Package authz holds the single ownership rule applied to every owned
// resource: admins may access anything, everyone else only what they own.
package authz

import (
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "ALLOW"
	}
	return "DENY"
}

// Authorize decides whether p may access a resource owned by ownerID.
func Authorize(p *model.Principal, ownerID string) Decision {
	if p == nil || p.ID == "" {
		return Deny
	}
	if p.IsAdmin || p.ID == ownerID {
		return Allow
	}
	return Deny
}

// Check is Authorize for an owned record, returning a Forbidden error on deny.
// It must be called after the record is fetched and before it is returned or mutated.
func Check(p *model.Principal, res model.Owned) error {
	if Authorize(p, res.GetOwnerID()) == Allow {
		return nil
	}
	return apperrors.Forbidden(nil)
}

// OwnerFilter returns the owner id list and search queries must be
// restricted to, or "" when p may see every row.
func OwnerFilter(p *model.Principal) string {
	if p != nil && p.IsAdmin {
		return ""
	}
	if p == nil {
		// never matches a stored owner
		return "\x00"
	}
	return p.ID
}

// RequirePrincipal rejects anonymous callers on operations that stamp an owner.
func RequirePrincipal(p *model.Principal) error {
	if p == nil || p.ID == "" {
		return apperrors.Unauthorized("Authorization token required", nil)
	}
	return nil
}
