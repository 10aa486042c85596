package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ailawyer-pro/ailawyer/internal/models"
)

const bearerPrefix = "Bearer "

// ProviderConfig configures the identity provider
type ProviderConfig struct {
	Secret     string
	Issuer     string
	AdminEmail string
	SessionTTL time.Duration
	CookieName string
	// PasswordCost overrides the bcrypt cost; tests use bcrypt.MinCost
	PasswordCost int
}

// SignUpParams holds a new account request
type SignUpParams struct {
	Email     string
	Password  string
	Name      string
	IPAddress string
	UserAgent string
}

// SignInParams holds a credential exchange request
type SignInParams struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// AuthResult is returned by a successful credential exchange
type AuthResult struct {
	Token   string
	User    *models.User
	Session *models.Session
}

// Identity is a resolved user/session pair
type Identity struct {
	User    *models.User
	Session *models.Session
}

// Provider owns accounts and sessions: sign-up, sign-in, sign-out and
// session lookup by token.
type Provider struct {
	db       *gorm.DB
	sessions SessionStore
	tokens   *TokenSigner
	cfg      ProviderConfig
	now      func() time.Time
	logger   zerolog.Logger

	// dummyHash is compared on unknown emails so sign-in takes the same
	// time whether or not the account exists
	dummyHash string
}

// NewProvider creates an identity provider
func NewProvider(db *gorm.DB, sessions SessionStore, cfg ProviderConfig, logger zerolog.Logger) (*Provider, error) {
	if cfg.SessionTTL <= 0 {
		return nil, errors.New("session TTL must be positive")
	}
	tokens, err := NewTokenSigner(cfg.Secret, cfg.Issuer)
	if err != nil {
		return nil, err
	}
	cfg.AdminEmail = normalizeEmail(cfg.AdminEmail)

	dummyHash, err := HashPassword(models.NewID(), cfg.PasswordCost)
	if err != nil {
		return nil, err
	}

	return &Provider{
		db:        db,
		sessions:  sessions,
		tokens:    tokens,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With().Str("component", "identity_provider").Logger(),
		dummyHash: dummyHash,
	}, nil
}

// SetClock replaces the time source
func (p *Provider) SetClock(now func() time.Time) {
	p.now = now
}

// CookieName is the name of the session cookie
func (p *Provider) CookieName() string {
	return p.cfg.CookieName
}

// SessionTTL is the lifetime of newly issued sessions
func (p *Provider) SessionTTL() time.Duration {
	return p.cfg.SessionTTL
}

// RoleForEmail returns the role assigned to a new account with this email
func (p *Provider) RoleForEmail(email string) string {
	if p.cfg.AdminEmail != "" && normalizeEmail(email) == p.cfg.AdminEmail {
		return models.RoleAdmin
	}
	return models.RoleUser
}

// SignUp creates an account and opens its first session
func (p *Provider) SignUp(ctx context.Context, params SignUpParams) (*AuthResult, error) {
	email := normalizeEmail(params.Email)

	var count int64
	if err := p.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	passwordHash, err := HashPassword(params.Password, p.cfg.PasswordCost)
	if err != nil {
		return nil, err
	}

	firstName, lastName := models.SplitName(params.Name)
	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(params.Name),
		FirstName:    firstName,
		LastName:     lastName,
		Role:         p.RoleForEmail(email),
	}
	if err := p.createUser(ctx, user); err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("user_id", user.ID).
		Str("email", user.Email).
		Str("role", user.Role).
		Msg("User created")

	return p.openSession(ctx, user, params.IPAddress, params.UserAgent)
}

// createUser inserts user. A concurrent sign-up that wins the race on the
// email index surfaces as ErrEmailTaken.
func (p *Provider) createUser(ctx context.Context, user *models.User) error {
	err := p.db.WithContext(ctx).Create(user).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrEmailTaken
	}
	return fmt.Errorf("failed to create user: %w", err)
}

// SignIn exchanges credentials for a new session
func (p *Provider) SignIn(ctx context.Context, params SignInParams) (*AuthResult, error) {
	var user models.User
	err := p.db.WithContext(ctx).Where("email = ?", normalizeEmail(params.Email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = VerifyPassword(params.Password, p.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := VerifyPassword(params.Password, user.PasswordHash); err != nil {
		return nil, err
	}

	return p.openSession(ctx, &user, params.IPAddress, params.UserAgent)
}

// SignOut destroys the session behind a token. Unparseable tokens are
// ignored; there is nothing to revoke.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := p.tokens.Parse(token, p.now())
	if err != nil {
		p.logger.Debug().Err(err).Msg("Sign-out with unusable token")
		return nil
	}
	if err := p.sessions.Delete(ctx, claims.SessionID); err != nil {
		return err
	}
	p.logger.Info().Str("session_id", claims.SessionID).Str("user_id", claims.UserID).Msg("Session closed")
	return nil
}

// GetSession resolves a token to its live session and user
func (p *Provider) GetSession(ctx context.Context, token string) (*Identity, error) {
	now := p.now()
	claims, err := p.tokens.Parse(token, now)
	if err != nil {
		return nil, err
	}

	session, err := p.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != claims.UserID {
		return nil, fmt.Errorf("%w: session owner mismatch", ErrInvalidToken)
	}
	if session.Expired(now) {
		return nil, ErrSessionExpired
	}

	var user models.User
	if err := models.FindByID(p.db.WithContext(ctx), session.UserID, &user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	return &Identity{User: &user, Session: session}, nil
}

// ListUsers returns all accounts, newest first
func (p *Provider) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := p.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// PurgeExpired removes sessions that have expired
func (p *Provider) PurgeExpired(ctx context.Context) (int64, error) {
	return p.sessions.DeleteExpired(ctx, p.now())
}

// TokenFromRequest extracts the session token: Authorization bearer first,
// then the session cookie.
func (p *Provider) TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, bearerPrefix) {
		if token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)); token != "" {
			return token
		}
	}
	if cookie, err := r.Cookie(p.cfg.CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func (p *Provider) openSession(ctx context.Context, user *models.User, ip, userAgent string) (*AuthResult, error) {
	now := p.now().UTC()
	session := &models.Session{
		UserID:    user.ID,
		ExpiresAt: now.Add(p.cfg.SessionTTL),
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := p.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	token, err := p.tokens.Sign(session.ID, user.ID, now, session.ExpiresAt)
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("user_id", user.ID).
		Str("session_id", session.ID).
		Time("expires_at", session.ExpiresAt).
		Msg("Session opened")

	return &AuthResult{Token: token, User: user, Session: session}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
