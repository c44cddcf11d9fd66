package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"docanchor/pkg/requestcontext"
)

// Claims carries the identity the auth layer established for the caller.
// Organization and API-key provisioning happen outside this service; by the
// time a request reaches the orchestrator the org_id claim is the only
// authentication fact it relies on.
type Claims struct {
	OrgID string
}

// TokenValidator validates a bearer token and extracts claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// HMACValidator validates HS256 tokens issued by the account service.
type HMACValidator struct {
	signingKey []byte
}

func NewHMACValidator(signingKey string) *HMACValidator {
	return &HMACValidator{signingKey: []byte(signingKey)}
}

func (v *HMACValidator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	orgID, _ := mapClaims["org_id"].(string)
	if orgID == "" {
		return nil, fmt.Errorf("token missing org_id claim")
	}
	return &Claims{OrgID: orgID}, nil
}

// RequireAuth enforces a valid bearer token and injects the caller's
// organization ID into the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "rejected bearer token",
					"request_id", requestcontext.RequestID(r.Context()),
					"error", err.Error(),
				)
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}
			ctx := requestcontext.WithOrgID(r.Context(), claims.OrgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
