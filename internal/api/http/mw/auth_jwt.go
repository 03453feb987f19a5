package mw

import (
	"context"
	"net/http"

	"poolstats/internal/security"
)

// Key for the subject in ctx
type subjectCtxKey struct{}

type JWTMiddleware struct {
	verifier *security.RS256Verifier // nil when jwt.enabled=false
}

func NewJWT(v *security.RS256Verifier) *JWTMiddleware {
	return &JWTMiddleware{verifier: v}
}

func (m *JWTMiddleware) Handler(next http.Handler) http.Handler {
	if m.verifier == nil { // jwt.enabled=false -> allowed
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.verifier.VerifyBearer(r.Header.Get("Authorization"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), subjectCtxKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Subject returns the authenticated subject, if any.
func Subject(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectCtxKey{}).(string)
	return s, ok
}
