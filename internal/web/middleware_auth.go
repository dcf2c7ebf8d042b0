package web

import (
	"context"
	"net/http"
	"strings"
)

type userKey struct{}

// requireUser rejects requests without a valid bearer token and stores the
// token's user id in the request context.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			s.unauthorized(w, "missing bearer token")
			return
		}
		userID, err := s.verifier.UserID(token)
		if err != nil {
			s.logger.Info("rejected access token", "path", r.URL.Path, "error", err)
			s.unauthorized(w, "invalid or expired access token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	}
}

func (s *Server) unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="domeok"`)
	writeJSON(w, http.StatusUnauthorized, errorBody{
		StatusCode: http.StatusUnauthorized,
		Code:       codeUnauthorized,
		Detail:     detail,
	}, s.logger)
}

func userFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
