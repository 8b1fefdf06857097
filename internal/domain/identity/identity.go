// Package identity models the caller identity this core receives from the
// upstream edge. Credentials are verified there; here only presence matters.
package identity

import "github.com/go-faster/errors"

// ErrUnauthorized is returned when an operation that requires an
// authenticated user is called without one.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the already-resolved caller identity forwarded by the edge
// layer. At most one of UserID and AnonymousID is expected to be set; Role is
// an opaque tag used by coarse authorization upstream and carried through
// unchanged.
type Identity struct {
	UserID      string
	AnonymousID string
	Role        string
}

// Anonymous builds an identity for an anonymous session.
func Anonymous(anonymousID string) Identity {
	return Identity{AnonymousID: anonymousID}
}

// User builds an identity for an authenticated user.
func User(userID string) Identity {
	return Identity{UserID: userID}
}

// IsAuthenticated reports whether the caller is an authenticated user.
func (id Identity) IsAuthenticated() bool {
	return id.UserID != ""
}

// IsEmpty reports whether no identity at all was supplied.
func (id Identity) IsEmpty() bool {
	return id.UserID == "" && id.AnonymousID == ""
}
