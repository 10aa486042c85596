package server

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ailawyer-pro/ailawyer/internal/config"
)

// OriginPolicy decides which browser origins may call the API
type OriginPolicy struct {
	allowed          map[string]struct{}
	suffixes         []string
	wildcardFallback bool
	logger           zerolog.Logger
}

// NewOriginPolicy builds a policy from config. Suffixes match whole DNS
// labels: ".pages.dev" accepts "app.pages.dev", not "evilpages.dev".
func NewOriginPolicy(cfg config.CORSConfig, logger zerolog.Logger) *OriginPolicy {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[strings.TrimRight(strings.ToLower(origin), "/")] = struct{}{}
	}

	suffixes := make([]string, 0, len(cfg.AllowedSuffixes))
	for _, suffix := range cfg.AllowedSuffixes {
		suffix = strings.ToLower(strings.TrimSpace(suffix))
		if suffix == "" {
			continue
		}
		if !strings.HasPrefix(suffix, ".") {
			suffix = "." + suffix
		}
		suffixes = append(suffixes, suffix)
	}

	return &OriginPolicy{
		allowed:          allowed,
		suffixes:         suffixes,
		wildcardFallback: cfg.WildcardFallback,
		logger:           logger.With().Str("component", "cors").Logger(),
	}
}

// Trusted reports whether origin is on the allow-list or under an allowed
// hosting suffix. The wildcard fallback is never consulted.
func (p *OriginPolicy) Trusted(origin string) bool {
	origin = strings.ToLower(origin)
	if _, ok := p.allowed[origin]; ok {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return false
	}
	host := u.Hostname()
	for _, suffix := range p.suffixes {
		if strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
			return true
		}
	}
	return false
}

// Allow is the CORS decision: trusted origins, plus everything else when
// the wildcard fallback is enabled.
func (p *OriginPolicy) Allow(origin string) bool {
	if p.Trusted(origin) {
		p.logger.Debug().Str("origin", origin).Msg("Allowing origin")
		return true
	}
	if p.wildcardFallback {
		p.logger.Warn().Str("origin", origin).Msg("Unknown origin allowed by wildcard fallback")
		return true
	}
	p.logger.Info().Str("origin", origin).Msg("Rejecting unknown origin")
	return false
}

// Middleware returns the gin CORS handler for this policy
func (p *OriginPolicy) Middleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  p.Allow,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	})
}
