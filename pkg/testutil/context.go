package testutil

import (
	"context"
	"net/http"
	"time"

	id "sphere/pkg/domain"
	"sphere/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context, as the auth middleware
// does for authenticated requests. Malformed IDs are ignored.
func WithUserID(req *http.Request, userID string) *http.Request {
	if parsedUserID, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithUserID(req.Context(), parsedUserID))
	}
	return req
}

// WithAuth adds the user ID and wallet address of an authenticated caller.
func WithAuth(req *http.Request, userID id.UserID, walletAddress string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	if walletAddress != "" {
		ctx = requestcontext.WithWalletAddress(ctx, walletAddress)
	}
	return req.WithContext(ctx)
}

// WithRequestTime pins the request time seen by services.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
