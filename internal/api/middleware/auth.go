package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/stackwise/nacl-manager/internal/auth"
	"github.com/stackwise/nacl-manager/internal/domain"
	"github.com/stackwise/nacl-manager/internal/storage"
)

type contextKey string

const APIKeyContextKey contextKey = "api_key"

// Auth creates authentication middleware. Requests authenticate with an API
// key, the bootstrap key while no API keys exist yet, or an OIDC bearer token
// when a verifier is configured.
func Auth(store storage.Storage, bootstrapKey string, oidcVerifier *auth.OIDCVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract the credential from the Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"code":401,"message":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, `{"code":401,"message":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			credential := strings.TrimPrefix(authHeader, "Bearer ")
			if credential == "" {
				http.Error(w, `{"code":401,"message":"empty credential"}`, http.StatusUnauthorized)
				return
			}

			ctx := r.Context()

			// Check if we have any API keys in the database
			keyCount, err := store.CountAPIKeys(ctx)
			if err != nil {
				http.Error(w, `{"code":500,"message":"internal server error"}`, http.StatusInternalServerError)
				return
			}

			// If no keys exist and bootstrap key is set, allow bootstrap key
			if keyCount == 0 && bootstrapKey != "" {
				if subtle.ConstantTimeCompare([]byte(credential), []byte(bootstrapKey)) == 1 {
					ctx = context.WithValue(ctx, APIKeyContextKey, &domain.APIKey{
						ID:   "bootstrap",
						Name: "Bootstrap Key",
					})
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			// Hash the provided key and look it up
			keyHash := hashAPIKey(credential)
			storedKey, err := store.GetAPIKeyByHash(ctx, keyHash)
			if err == nil {
				// Update last used timestamp (fire and forget)
				go func() {
					_ = store.UpdateAPIKeyLastUsed(context.Background(), storedKey.ID)
				}()

				ctx = context.WithValue(ctx, APIKeyContextKey, storedKey)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			if err != domain.ErrNotFound {
				http.Error(w, `{"code":500,"message":"internal server error"}`, http.StatusInternalServerError)
				return
			}

			// Not an API key; try OIDC when configured.
			if oidcVerifier != nil {
				claims, err := oidcVerifier.Verify(ctx, credential)
				if err == nil {
					ctx = context.WithValue(ctx, APIKeyContextKey, &domain.APIKey{
						ID:   "oidc:" + claims.Subject,
						Name: claims.Email,
					})
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			http.Error(w, `{"code":401,"message":"invalid credentials"}`, http.StatusUnauthorized)
		})
	}
}

// hashAPIKey creates a SHA-256 hash of the API key.
// We use SHA-256 for fast lookups since API keys are already high-entropy random strings.
func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// GetAPIKeyFromContext retrieves the API key from the request context.
func GetAPIKeyFromContext(ctx context.Context) *domain.APIKey {
	key, _ := ctx.Value(APIKeyContextKey).(*domain.APIKey)
	return key
}
