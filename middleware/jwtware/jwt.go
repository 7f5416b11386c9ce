// Package jwtware is the request gate for the Glyzier API: it pulls a JWT
// out of the request, hands it to a TokenValidator, and attaches the
// resulting claims to the request context for downstream handlers and the
// route policy.
package jwtware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
)

// ErrJWTMissingOrMalformed is returned when no credential could be pulled
// from any configured lookup source.
var ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")

const (
	defaultContextKey = "user"
	defaultAuthScheme = "Bearer"
)

var defaultTokenLookup = "header:" + router.HeaderAuthorization

// TokenValidator turns a raw token string into claims. The auth package's
// token service satisfies it through a small bridge, which keeps this
// package free of an import cycle.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// AuthClaims is the subset of session claims the gate needs for role checks
// and context propagation.
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
}

// ValidationListener runs after a token validates and before role checks.
// A non-nil error rejects the request even in Optional mode.
type ValidationListener func(ctx router.Context, claims AuthClaims) error

type Config struct {
	// Filter skips the gate entirely when it returns true for a request.
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler
	SigningKey     SigningKey
	SigningKeys    map[string]SigningKey
	ContextKey     string
	TokenLookup    string
	AuthScheme     string
	KeyFunc        jwt.Keyfunc
	JWKSetURLs     []string

	// TokenValidator is required.
	TokenValidator TokenValidator

	// IdentityValidator re-resolves the token's subject against the
	// account store after the signature checks out, so a token minted
	// before a ban stops working the moment the account does. A failure
	// counts as an invalid token: strict mode rejects, Optional mode
	// continues unauthenticated.
	IdentityValidator func(ctx router.Context, claims AuthClaims) error

	// Optional makes the middleware an identity resolver rather than a
	// gate: a missing, malformed, or expired token lets the request
	// continue with no claims attached. Authorization decisions belong to
	// whatever runs after.
	Optional bool

	// RoleChecker overrides the built-in role comparison when set.
	RoleChecker func(AuthClaims, string) bool
	// RequiredRole must match the claims role exactly.
	RequiredRole string
	// MinimumRole is checked against the role hierarchy via IsAtLeast.
	MinimumRole string

	// ContextEnricher propagates validated claims into the request's
	// standard context so code below the router layer can read them.
	ContextEnricher func(c context.Context, claims AuthClaims) context.Context

	// ValidationListeners run in order; the first error wins.
	ValidationListeners []ValidationListener
}

// SigningKey pairs key material with the algorithm it is valid for.
type SigningKey struct {
	JWTAlg string
	Key    any
}

// New builds the gate middleware. Configuration errors (no validator, no
// key source) panic at construction so they surface at boot, not per
// request.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := extractRawToken(ctx, cfg.extractors())
			if err != nil {
				if cfg.Optional {
					return ctx.Next()
				}
				return cfg.ErrorHandler(ctx, err)
			}

			claims, err := cfg.TokenValidator.Validate(raw)
			if err != nil {
				if cfg.Optional {
					return ctx.Next()
				}
				return cfg.ErrorHandler(ctx, err)
			}

			if cfg.IdentityValidator != nil {
				if err := cfg.IdentityValidator(ctx, claims); err != nil {
					if cfg.Optional {
						return ctx.Next()
					}
					return cfg.ErrorHandler(ctx, err)
				}
			}

			// Listener and role failures are real rejections, Optional
			// only forgives absent or unverifiable credentials.
			if err := cfg.notifyListeners(ctx, claims); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if err := checkRoles(claims, cfg); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, claims)

			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), claims))
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

func checkRoles(claims AuthClaims, cfg Config) error {
	if cfg.RequiredRole == "" && cfg.MinimumRole == "" && cfg.RoleChecker == nil {
		return nil
	}

	if cfg.RequiredRole != "" && !claims.HasRole(cfg.RequiredRole) {
		return fmt.Errorf("access denied: required role '%s' not found", cfg.RequiredRole)
	}

	if cfg.MinimumRole != "" && !claims.IsAtLeast(cfg.MinimumRole) {
		return fmt.Errorf("access denied: minimum role '%s' required", cfg.MinimumRole)
	}

	if cfg.RoleChecker != nil {
		want := cfg.RequiredRole
		if want == "" {
			want = cfg.MinimumRole
		}
		if want != "" && !cfg.RoleChecker(claims, want) {
			return fmt.Errorf("access denied: custom role check failed for role '%s'", want)
		}
	}

	return nil
}

// extractRawToken walks the lookup chain and keeps the first hit.
func extractRawToken(ctx router.Context, extractors []Extractor) (string, error) {
	var raw string
	var err error
	for _, extract := range extractors {
		raw, err = extract(ctx)
		if raw != "" && err == nil {
			return raw, nil
		}
	}
	return raw, err
}

// GetDefaultConfig fills in the zero-value fields of an optional Config.
func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.TokenValidator == nil {
		panic("AUTH: JWT middleware configuration: TokenValidator is required.")
	}

	if cfg.SigningKey.Key == nil && len(cfg.SigningKeys) == 0 && len(cfg.JWKSetURLs) == 0 && cfg.KeyFunc == nil {
		panic("AUTH: JWT middleware configuration: At least one of the following is required: KeyFunc, JWKSetURLs, SigningKeys, or SigningKey.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = defaultContextKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = defaultAuthScheme
	}

	if cfg.KeyFunc == nil {
		cfg.KeyFunc = buildKeyFunc(cfg)
	}

	return cfg
}

func defaultErrorHandler(c router.Context, err error) error {
	if err.Error() == ErrJWTMissingOrMalformed.Error() {
		return c.Status(router.StatusBadRequest).SendString(ErrJWTMissingOrMalformed.Error())
	}
	return c.Status(router.StatusUnauthorized).SendString("Invalid or expired token")
}

// buildKeyFunc resolves the configured key material into a jwt.Keyfunc:
// static keys by kid, remote JWK sets, or the single signing key.
func buildKeyFunc(cfg Config) jwt.Keyfunc {
	if len(cfg.SigningKeys) == 0 && len(cfg.JWKSetURLs) == 0 {
		return staticKeyFunc(cfg.SigningKey)
	}

	var given map[string]keyfunc.GivenKey
	if cfg.SigningKeys != nil {
		given = make(map[string]keyfunc.GivenKey, len(cfg.SigningKeys))
		for kid, key := range cfg.SigningKeys {
			given[kid] = keyfunc.NewGivenCustom(key.Key, keyfunc.GivenKeyOptions{
				Algorithm: key.JWTAlg,
			})
		}
	}

	if len(cfg.JWKSetURLs) == 0 {
		return keyfunc.NewGiven(given).Keyfunc
	}

	kf, err := remoteKeyFunc(given, cfg.JWKSetURLs)
	if err != nil {
		panic("Failed to create keyfunc from JWK Set URL: " + err.Error())
	}
	return kf
}

func remoteKeyFunc(given map[string]keyfunc.GivenKey, urls []string) (jwt.Keyfunc, error) {
	opts := keyfunc.Options{
		GivenKeys: given,
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWT set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}

	sets := make(map[string]keyfunc.Options, len(urls))
	for _, url := range urls {
		sets[url] = opts
	}

	multi, err := keyfunc.GetMultiple(sets, keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get JWT URLs: %w", err)
	}
	return multi.Keyfunc, nil
}

func staticKeyFunc(key SigningKey) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if key.JWTAlg != "" {
			alg, ok := token.Header["alg"].(string)
			if !ok {
				return nil, fmt.Errorf("unexpected JWT signing method: expected %q got: missing json type", key.JWTAlg)
			}
			if alg != key.JWTAlg {
				return nil, fmt.Errorf("unexpected jwt signing method: expected: %q: got: %q", key.JWTAlg, alg)
			}
		}
		return key.Key, nil
	}
}

func (cfg *Config) extractors() []Extractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) notifyListeners(ctx router.Context, claims AuthClaims) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(ctx, claims); err != nil {
			return err
		}
	}
	return nil
}

// Extractor pulls a raw token out of one request location.
type Extractor func(c router.Context) (string, error)

// GetExtractors parses a lookup expression such as
// "header:Authorization,cookie:jwt,query:auth_token,param:token" into the
// extractor chain it describes. Unknown sources are ignored.
func GetExtractors(tokenLookup string, authSchemes ...string) []Extractor {
	scheme := defaultAuthScheme
	if len(authSchemes) > 0 {
		scheme = authSchemes[0]
	}

	chain := make([]Extractor, 0)
	for _, entry := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(parts[1])

		switch source {
		case "header":
			chain = append(chain, fromHeader(name, scheme))
		case "query":
			chain = append(chain, fromQuery(name))
		case "param":
			chain = append(chain, fromParam(name))
		case "cookie":
			chain = append(chain, fromCookie(name))
		}
	}

	return chain
}

// fromHeader strips the auth scheme prefix case-insensitively.
func fromHeader(header string, authScheme string) Extractor {
	return func(c router.Context) (string, error) {
		value := c.GetString(header, "")
		l := len(authScheme)
		if l == 0 {
			fmt.Println("[WARNING] Missing auth scheme in config definition")
			return "", ErrJWTMissingOrMalformed
		}
		authScheme = strings.TrimSpace(authScheme)
		if len(value) > l+1 && strings.EqualFold(value[:l], authScheme) {
			return strings.TrimSpace(value[l:]), nil
		}
		return "", ErrJWTMissingOrMalformed
	}
}

func fromQuery(param string) Extractor {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

func fromParam(param string) Extractor {
	return func(c router.Context) (string, error) {
		token := c.Param(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

func fromCookie(name string) Extractor {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
