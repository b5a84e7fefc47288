package middleware

import (
	"context"
	"net/http"
	"strings"

	h "rehearsalplanner/internal/delivery/http/helpers"
	"rehearsalplanner/internal/domain"
)

type contextKey string

const (
	memberIDKey     contextKey = "memberID"
	capabilitiesKey contextKey = "capabilities"
)

// SetMemberID returns a context with the member ID set. Used by auth middleware.
func SetMemberID(ctx context.Context, memberID string) context.Context {
	return context.WithValue(ctx, memberIDKey, memberID)
}

// MemberIDFromContext returns the authenticated member ID from the context, if present.
func MemberIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(memberIDKey).(string)
	return id, ok
}

// SetCapabilities returns a context with the token's capability tags set.
func SetCapabilities(ctx context.Context, capabilities []string) context.Context {
	return context.WithValue(ctx, capabilitiesKey, capabilities)
}

// HasCapability reports whether the authenticated member's token carries the
// given capability tag.
func HasCapability(ctx context.Context, capability string) bool {
	caps, ok := ctx.Value(capabilitiesKey).([]string)
	if !ok {
		return false
	}
	for _, c := range caps {
		if c == capability {
			return true
		}
	}
	return false
}

// RequireAuth returns a wrapper that validates the Bearer token and sets the
// member ID and capabilities in the request context. If the token is missing
// or invalid, it responds with 401 and does not call next.
func RequireAuth(verifier domain.TokenVerifier) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "missing authorization header")
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid authorization format")
				return
			}
			token := strings.TrimSpace(auth[len(prefix):])
			if token == "" {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "missing token")
				return
			}
			memberID, capabilities, err := verifier.Verify(token)
			if err != nil {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid or expired token")
				return
			}
			ctx := SetCapabilities(SetMemberID(r.Context(), memberID), capabilities)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireCapability returns a wrapper that rejects requests whose token does
// not carry the given capability. Must run after RequireAuth.
func RequireCapability(capability string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !HasCapability(r.Context(), capability) {
				h.WriteJSONError(w, http.StatusForbidden, h.ErrCodeForbidden, "missing capability")
				return
			}
			next(w, r)
		}
	}
}
