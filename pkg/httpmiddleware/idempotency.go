package httpmiddleware

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Request and response headers understood by the storefront API.
const (
	HeaderUserID             = "X-User-ID"
	HeaderIdempotencyKey     = "Idempotency-Key"
	HeaderIdempotentReplayed = "Idempotent-Replayed"
)

// ErrIdempotencyInFlight is returned by IdempotencyStore.Claim while another
// request holds the key.
var ErrIdempotencyInFlight = errors.New("request with this idempotency key is in progress")

// CachedResponse is a stored response replayed for a repeated key.
type CachedResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

// IdempotencyStore persists idempotency keys and their responses.
type IdempotencyStore interface {
	// Claim reserves key. It returns the stored response when the key has
	// already completed, nil when the caller now owns the key, and
	// ErrIdempotencyInFlight while another request owns it.
	Claim(ctx context.Context, key string) (*CachedResponse, error)
	Complete(ctx context.Context, key string, resp CachedResponse) error
	Release(ctx context.Context, key string) error
}

const maxIdempotencyKeyLen = 255

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated Idempotency-Key of
// the same caller. Server errors release the key so the request can be
// retried. Requests without the header pass through.
func Idempotency(store IdempotencyStore) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLen {
				WriteError(w, http.StatusBadRequest, "invalid_request", "idempotency key is too long")
				return
			}

			ctx := r.Context()
			lg := zctx.From(ctx)
			key = r.Header.Get(HeaderUserID) + ":" + r.Method + ":" + r.URL.Path + ":" + key

			cached, err := store.Claim(ctx, key)
			switch {
			case errors.Is(err, ErrIdempotencyInFlight):
				WriteError(w, http.StatusConflict, "idempotency_conflict", err.Error())
				return
			case err != nil:
				lg.Warn("Idempotency store unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			case cached != nil:
				if cached.ContentType != "" {
					w.Header().Set("Content-Type", cached.ContentType)
				}
				w.Header().Set(HeaderIdempotentReplayed, "true")
				w.WriteHeader(cached.Status)
				_, _ = w.Write(cached.Body)
				return
			}

			rec := &recorder{ResponseWriter: w}
			defer func() {
				// The outcome is stored even if the client went away.
				ctx := context.WithoutCancel(ctx)
				if rec.status == 0 || rec.status >= http.StatusInternalServerError {
					if err := store.Release(ctx, key); err != nil {
						lg.Warn("Release idempotency key", zap.Error(err))
					}
					return
				}
				err := store.Complete(ctx, key, CachedResponse{
					Status:      rec.status,
					ContentType: w.Header().Get("Content-Type"),
					Body:        rec.body.Bytes(),
				})
				if err != nil {
					lg.Warn("Store idempotent response", zap.Error(err))
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
