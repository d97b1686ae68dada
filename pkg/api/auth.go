package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/marmos91/byteserve/pkg/apierr"
	"github.com/marmos91/byteserve/pkg/metadata"
)

// Principal is the authenticated caller behind a request: the user
// account and, for bearer-token requests, the token used.
type Principal struct {
	User  *metadata.User
	Token *metadata.ApiToken
}

// BearerToken extracts the token from "Authorization: Bearer <token>",
// returning "" if absent or malformed.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, prefix))
}

// AuthenticateBearer resolves the ApiToken bearer scheme used by the
// public object API and the file-request admin API: looks up the
// token, rejects if expired or its owning user is disabled.
func AuthenticateBearer(ctx context.Context, store metadata.CredentialStore, users metadata.UserStore, token string) (*Principal, error) {
	if token == "" {
		return nil, apierr.ErrUnauthorized
	}
	t, err := store.FindAPITokenByToken(ctx, token)
	if err != nil {
		if errors.Is(err, apierr.ErrNotFound) {
			return nil, apierr.ErrUnauthorized
		}
		return nil, err
	}
	if t.Expired(time.Now()) {
		return nil, apierr.ErrUnauthorized
	}
	user, err := users.FindUserByID(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, apierr.ErrNotFound) {
			return nil, apierr.ErrUnauthorized
		}
		return nil, err
	}
	if !user.Enabled {
		return nil, apierr.ErrForbidden
	}
	return &Principal{User: user, Token: t}, nil
}
