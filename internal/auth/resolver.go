package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/ailawyer-pro/ailawyer/internal/models"
)

// Placeholder identity served by DemoFallbackResolver
const (
	DemoUserID    = "demo-user"
	DemoUserEmail = "demo@ailawyer.pro"
	DemoUserName  = "Demo User"
	DemoSessionID = "demo-session"
)

// IdentityResolver turns an inbound request into an identity. A nil
// identity with a nil error means "no session".
type IdentityResolver interface {
	Resolve(ctx context.Context, r *http.Request) (*Identity, error)
}

// SessionResolver resolves identities through the identity provider
type SessionResolver struct {
	provider *Provider
}

// NewSessionResolver creates a resolver backed by real sessions
func NewSessionResolver(provider *Provider) *SessionResolver {
	return &SessionResolver{provider: provider}
}

func (r *SessionResolver) Resolve(ctx context.Context, req *http.Request) (*Identity, error) {
	token := r.provider.TokenFromRequest(req)
	if token == "" {
		return nil, nil
	}
	return r.provider.GetSession(ctx, token)
}

// DemoFallbackResolver serves a fixed placeholder identity whenever the
// wrapped resolver fails or finds no session. For demo deployments only.
type DemoFallbackResolver struct {
	next IdentityResolver
	now  func() time.Time
}

// NewDemoFallbackResolver wraps next with the demo identity fallback
func NewDemoFallbackResolver(next IdentityResolver) *DemoFallbackResolver {
	return &DemoFallbackResolver{next: next, now: time.Now}
}

func (r *DemoFallbackResolver) Resolve(ctx context.Context, req *http.Request) (*Identity, error) {
	identity, err := r.next.Resolve(ctx, req)
	if err == nil && identity != nil && identity.Session != nil {
		return identity, nil
	}
	return DemoIdentity(r.now()), nil
}

// DemoIdentity builds the placeholder user and a synthetic, never-persisted
// session valid for a day from now.
func DemoIdentity(now time.Time) *Identity {
	now = now.UTC()
	user := &models.User{
		BaseModel: models.BaseModel{ID: DemoUserID, CreatedAt: now},
		Email:     DemoUserEmail,
		Name:      DemoUserName,
		FirstName: "Demo",
		LastName:  "User",
		Role:      models.RoleUser,
	}
	session := &models.Session{
		BaseModel: models.BaseModel{ID: DemoSessionID, CreatedAt: now},
		UserID:    DemoUserID,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	return &Identity{User: user, Session: session}
}

// NewResolver selects the resolver strategy for the deployment
func NewResolver(provider *Provider, demoFallbackEnabled bool) IdentityResolver {
	var resolver IdentityResolver = NewSessionResolver(provider)
	if demoFallbackEnabled {
		resolver = NewDemoFallbackResolver(resolver)
	}
	return resolver
}
