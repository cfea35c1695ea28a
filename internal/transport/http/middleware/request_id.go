package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"lgu-hrms/internal/requestctx"
)

const maxRequestIDLen = 128

// RequestID propagates X-Request-ID, generating a UUID when the caller sent none
// or sent one too long to log.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := requestctx.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestID(ctx context.Context) string {
	return requestctx.GetRequestID(ctx)
}
