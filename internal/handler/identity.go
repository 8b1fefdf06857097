package handler

import (
	"net/http"

	"github.com/petalmarket/petal/internal/domain/identity"
)

// Identity headers set by the upstream edge after credential verification.
// This service trusts them as-is and only branches on presence.
const (
	headerUserID      = "X-User-Id"
	headerAnonymousID = "X-Anonymous-Id"
	headerUserRole    = "X-User-Role"
)

// callerIdentity builds the caller identity from request metadata. The user
// id wins when both are present, matching the cart resolution preference.
func callerIdentity(r *http.Request) identity.Identity {
	return identity.Identity{
		UserID:      r.Header.Get(headerUserID),
		AnonymousID: r.Header.Get(headerAnonymousID),
		Role:        r.Header.Get(headerUserRole),
	}
}
