package server

import (
	"context"
	"net/http"

	"github.com/tjfontaine/movegate/internal/auth"
	"github.com/tjfontaine/movegate/internal/core/domain"
)

type credentialKey struct{}

// CredentialMiddleware extracts the session credential from the cookie named
// cookieName or the Authorization header and stores it in the request
// context. Requests without a credential pass through; the action pipeline
// decides whether one is required.
func CredentialMiddleware(cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred := auth.ExtractCredential(r, cookieName)
			if cred != "" {
				AddLogField(r.Context(), "credential", "present")
			}
			ctx := context.WithValue(r.Context(), credentialKey{}, cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCredential returns the credential stored by CredentialMiddleware.
func GetCredential(ctx context.Context) domain.Credential {
	cred, _ := ctx.Value(credentialKey{}).(domain.Credential)
	return cred
}
