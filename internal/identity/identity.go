// Package identity resolves the user that owns an import session.
//
// The user id is opaque. Callers resolve it once at the edge (config, flag,
// request header) and pass it explicitly into every core operation.
package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/desertthunder/finport/internal/shared"
)

// Header carries the user id on API requests.
const Header = "X-User-ID"

// Provider yields the stable user id for the current session.
type Provider interface {
	UserID(ctx context.Context) (string, error)
}

// Static always returns the same user id. Used by the CLI and TUI.
type Static string

// UserID returns s, or [shared.ErrMissingUser] when s is blank.
func (s Static) UserID(ctx context.Context) (string, error) {
	id := strings.TrimSpace(string(s))
	if id == "" {
		return "", shared.ErrMissingUser
	}
	return id, nil
}

type contextKey struct{}

// WithUserID returns a copy of ctx carrying id.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the user id stored by [WithUserID].
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// Context reads the user id placed on the context by request middleware.
type Context struct{}

func (Context) UserID(ctx context.Context) (string, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return "", shared.ErrMissingUser
	}
	return id, nil
}

// FromRequest reads the user id from the [Header] request header.
func FromRequest(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(Header))
	if id == "" {
		return "", shared.ErrMissingUser
	}
	return id, nil
}
