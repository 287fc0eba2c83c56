package httpx

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// IdempotencyHeader carries the client supplied key.
const IdempotencyHeader = "Idempotency-Key"

const (
	maxIdempotencyKeyLen  = 255
	maxIdempotentBodySize = 1 << 20
)

// IdempotencyBackend is implemented by shared.IdempotencyStore.
type IdempotencyBackend interface {
	Reserve(ctx context.Context, key, module, fingerprint string) (shared.IdempotencyRecord, bool, error)
	Complete(ctx context.Context, key, module string, status int, contentType string, body []byte) error
	Delete(ctx context.Context, key, module string) error
}

// Idempotent replays stored responses for repeated Idempotency-Key values.
// Keys are namespaced per module and per actor. A key reused for a different
// method, path or body is rejected with a conflict. Requests without a key
// pass through untouched.
func Idempotent(store IdempotencyBackend, module string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLen {
				RespondError(w, shared.NewValidationError(IdempotencyHeader, "too long"))
				return
			}
			scoped := module
			if actor := shared.ActorFromContext(r.Context()); actor != nil {
				scoped = module + ":" + strconv.FormatInt(actor.ID, 10)
			}
			fingerprint, err := requestFingerprint(r)
			if err != nil {
				RespondError(w, err)
				return
			}
			rec, reserved, err := store.Reserve(r.Context(), key, scoped, fingerprint)
			if err != nil {
				if IsServerError(err) {
					logger.Error("idempotency reserve", slog.String("module", scoped), slog.Any("error", err))
				}
				RespondError(w, err)
				return
			}
			if !reserved {
				if rec.Fingerprint != "" && rec.Fingerprint != fingerprint {
					RespondError(w, shared.ErrIdempotencyMismatch)
					return
				}
				if !rec.Completed {
					RespondError(w, shared.ErrIdempotencyConflict)
					return
				}
				if rec.ContentType != "" {
					w.Header().Set("Content-Type", rec.ContentType)
				}
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(rec.StatusCode)
				_, _ = w.Write(rec.Body)
				return
			}

			tee := &teeWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(tee, r)

			ctx := context.WithoutCancel(r.Context())
			if tee.status >= 200 && tee.status < 300 {
				if err := store.Complete(ctx, key, scoped, tee.status, w.Header().Get("Content-Type"), tee.buf.Bytes()); err != nil {
					logger.Error("idempotency complete", slog.String("module", scoped), slog.Any("error", err))
				}
				return
			}
			if err := store.Delete(ctx, key, scoped); err != nil {
				logger.Error("idempotency release", slog.String("module", scoped), slog.Any("error", err))
			}
		})
	}
}

// requestFingerprint hashes the method, path and body of r and restores the
// body for the next handler.
func requestFingerprint(r *http.Request) (string, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, maxIdempotentBodySize+1))
		if err != nil {
			return "", shared.NewValidationError("body", "unreadable request body")
		}
		if len(body) > maxIdempotentBodySize {
			return "", shared.NewValidationError("body", "too large")
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}
	h := sha256.New()
	h.Write([]byte(r.Method + " " + r.URL.Path + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}

type teeWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	buf         bytes.Buffer
}

func (t *teeWriter) WriteHeader(status int) {
	if !t.wroteHeader {
		t.wroteHeader = true
		t.status = status
	}
	t.ResponseWriter.WriteHeader(status)
}

func (t *teeWriter) Write(p []byte) (int, error) {
	if !t.wroteHeader {
		t.WriteHeader(http.StatusOK)
	}
	t.buf.Write(p)
	return t.ResponseWriter.Write(p)
}
