package transport

import (
	"net/http"

	"freshmart/internal/domain"
	"freshmart/internal/middleware"

	"github.com/google/uuid"
)

// holderFromRequest builds the shopper identity resolved by the
// ResolveHolder middleware. Both sides may be set after a mid-session
// login; services use that to migrate anonymous holds.
func holderFromRequest(r *http.Request) domain.Holder {
	holder := domain.Holder{}

	if userIDStr, ok := middleware.GetUserID(r.Context()); ok {
		if userID, err := uuid.Parse(userIDStr); err == nil {
			holder.UserID = &userID
		}
	}
	if sessionKey, ok := middleware.GetSessionKey(r.Context()); ok {
		holder.SessionKey = sessionKey
	}

	return holder
}
