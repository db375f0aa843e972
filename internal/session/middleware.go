package session

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const MapIDKey contextKey = "mapID"

// Middleware rejects requests without a valid token. The token is read from
// the Authorization header, or from the "token" query parameter because
// browsers cannot set headers on websocket upgrades.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authorization"})
			return
		}

		mapID, err := s.Validate(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}

		ctx := context.WithValue(r.Context(), MapIDKey, mapID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	token := r.URL.Query().Get("token")
	return token, token != ""
}

func MapIDFromContext(ctx context.Context) string {
	mapID, _ := ctx.Value(MapIDKey).(string)
	return mapID
}

// Allows reports whether the request context carries a token for mapID.
func Allows(ctx context.Context, mapID string) bool {
	return mapID != "" && MapIDFromContext(ctx) == mapID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
