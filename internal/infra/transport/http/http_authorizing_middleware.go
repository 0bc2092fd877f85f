package http

import (
	"context"
	"net/http"
	"strings"

	context_ "github.com/LoggeL/facecensor/internal/infra/context"
	"github.com/LoggeL/facecensor/internal/infra/logging"
)

// TokenQueryParam is the fallback query parameter for the bearer token.
// The browser client uses it for <img src> URLs, which cannot carry headers.
const TokenQueryParam = "_t"

// TokenVerifier validates bearer tokens for the authorizing middleware.
type TokenVerifier interface {
	// Verify checks the given token string and returns the account ID it
	// identifies, or an error if the token is missing, malformed or expired.
	Verify(ctx context.Context, token string) (int64, error)
}

// AuthorizingMiddleware creates middleware that validates bearer tokens.
// The token is read from the Authorization header ("Bearer <token>") or,
// failing that, from the _t query parameter. Requests without a valid token
// are rejected with 401. On success the account ID is added to the request
// context.
func AuthorizingMiddleware(
	next http.Handler,
	verifier TokenVerifier,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			log.WarnContext(r.Context(), "no token provided")
			Error(w, http.StatusUnauthorized, "invalid credentials")

			return
		}

		accountID, err := verifier.Verify(r.Context(), token)
		if err != nil {
			log.WarnContext(r.Context(), "token verification failed", "error", err)
			Error(w, http.StatusUnauthorized, "invalid credentials")

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithAccountID(r.Context(), accountID)))
	})
}

func bearerToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		token, _ := strings.CutPrefix(authHeader, "Bearer")

		return strings.TrimSpace(token)
	}

	return r.URL.Query().Get(TokenQueryParam)
}
