// Package services – identity contract.
//
// This core never authenticates. Every engine and guard call receives an
// Identity already resolved by the surrounding application (session
// middleware, API gateway, etc.); the zero value is an anonymous visitor.
package services

// Identity describes the current account as supplied by the external identity
// layer.
type Identity struct {
	// ID is the stable account identifier. Empty for anonymous visitors.
	ID string

	// IsAdmin grants administrative surfaces (full results breakdown,
	// administrative vote deletion).
	IsAdmin bool
}

// Authenticated reports whether the identity belongs to a signed-in account.
func (id Identity) Authenticated() bool { return id.ID != "" }
