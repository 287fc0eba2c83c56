package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type authenticator interface {
	Authenticate(ctx context.Context, token string) (*Client, error)
	Touch(ctx context.Context, client *Client) error
}

// Middleware resolves the bearer key into the request actor. Requests
// without an Authorization header continue anonymously and are rejected by
// the RBAC layer on protected routes.
func Middleware(svc authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				httpx.RespondError(w, ErrInvalidCredentials)
				return
			}
			client, err := svc.Authenticate(r.Context(), token)
			if err != nil {
				if httpx.IsServerError(err) && logger != nil {
					logger.Error("authenticate api client", slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			if err := svc.Touch(r.Context(), client); err != nil && logger != nil {
				logger.Warn("touch api client", slog.Int64("client_id", client.ID), slog.Any("error", err))
			}
			ctx := shared.ContextWithActor(r.Context(), client.Actor())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
