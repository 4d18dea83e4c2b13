// Package identity derives the durable key that addresses a person in the
// verdict cache and the person store.
//
// Two identifier spaces exist: the request-scoped int64 id the caller sends,
// and the IdentityKey derived here. Only the key is ever cached or persisted.
// No normalization is applied: "Abu Abbas" and "abu abbas" are different
// identities, matching the upstream provider's own exact-field semantics.
package identity

import (
	"strings"

	"screener/internal/screening/models"
)

// Separator joins the identity fields. Request validation rejects control
// characters in names and countries, so it cannot appear inside a field.
const Separator = "\x1f"

// Derive returns the identity key for p. The request-scoped ID is ignored.
func Derive(p models.Person) models.IdentityKey {
	return Key(Fields(p))
}

// Fields returns the (name, dob, country) triple used as the store filter.
func Fields(p models.Person) models.Identity {
	return models.Identity{
		Name:    p.Name,
		DOB:     p.DateOfBirth,
		Country: p.Country,
	}
}

// Key encodes an identity triple in fixed field order.
func Key(id models.Identity) models.IdentityKey {
	var b strings.Builder
	b.Grow(len(id.Name) + len(models.DateLayout) + len(id.Country) + 2*len(Separator))
	b.WriteString(id.Name)
	b.WriteString(Separator)
	b.WriteString(id.DOB.String())
	b.WriteString(Separator)
	b.WriteString(id.Country)
	return models.IdentityKey(b.String())
}
