package middleware

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/hris-retropay/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/idempotency"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/jwt"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotencyReplayedHeader = "Idempotent-Replayed"
)

// Idempotency replays the stored response of an earlier POST that carried the
// same Idempotency-Key, and answers 409 while that request is still running.
// Only 2xx responses are stored. When Redis is unavailable requests pass through.
func Idempotency(store *idempotency.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idempKey := r.Header.Get(IdempotencyKeyHeader)
			if idempKey == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			var userID string
			if claims, err := jwt.ClaimsFromContext(ctx); err == nil {
				userID = claims.UserID
			}
			key := idempotency.Key(r.URL.Path, userID, idempKey)

			cached, err := store.Get(ctx, key)
			if err != nil {
				slog.Warn("Idempotency lookup failed", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if cached != nil {
				replay(w, cached)
				return
			}

			acquired, err := store.Acquire(ctx, key)
			if err != nil {
				slog.Warn("Idempotency lock failed", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				response.Conflict(w, "A request with this Idempotency-Key is still being processed")
				return
			}
			defer func() {
				if err := store.Release(ctx, key); err != nil {
					slog.Warn("Idempotency unlock failed", "key", key, "error", err)
				}
			}()

			// A request holding the lock may have finished between the lookup and Acquire.
			cached, err = store.Get(ctx, key)
			if err != nil {
				slog.Warn("Idempotency lookup failed", "key", key, "error", err)
			}
			if cached != nil {
				replay(w, cached)
				return
			}

			var body bytes.Buffer
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status < 200 || status >= 300 {
				return
			}

			if err := store.Save(ctx, key, idempotency.CachedResponse{
				StatusCode:  status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        bytes.TrimSpace(body.Bytes()),
			}); err != nil {
				slog.Warn("Idempotency save failed", "key", key, "error", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, cached *idempotency.CachedResponse) {
	w.Header().Set("Content-Type", cached.ContentType)
	w.Header().Set(IdempotencyReplayedHeader, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}
