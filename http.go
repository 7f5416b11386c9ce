package auth

import (
	"context"
	"time"

	"github.com/glyzier/auth/middleware/jwtware"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteAuthenticator glues the Authenticator to HTTP routes. It exposes two
// middleware flavors: ProtectedRoute rejects unauthenticated requests at the
// edge, IdentityGate only resolves the principal and leaves the decision to
// the authorization policy behind it.
type RouteAuthenticator struct {
	auth             Authenticator
	cfg              Config
	cookieDuration   time.Duration
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenTTL() > 0 {
		cookieDuration = cfg.GetTokenTTL()
	}

	a := &RouteAuthenticator{
		cfg:            cfg,
		auth:           auther,
		Logger:         defLogger{},
		cookieDuration: cookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// ProtectedRoute rejects any request that does not carry a valid token.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return jwtware.New(a.jwtConfig(cfg, errorHandler, false))
}

// AdminRoute is ProtectedRoute plus a minimum role requirement.
func (a *RouteAuthenticator) AdminRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	jcfg := a.jwtConfig(cfg, errorHandler, false)
	jcfg.MinimumRole = RoleAdmin
	return jwtware.New(jcfg)
}

// IdentityGate attaches claims when a valid token is present and otherwise
// lets the request through untouched. It never rejects; pair it with an
// authorization policy that decides per route.
func (a *RouteAuthenticator) IdentityGate(cfg Config) router.MiddlewareFunc {
	return jwtware.New(a.jwtConfig(cfg, nil, true))
}

func (a *RouteAuthenticator) jwtConfig(cfg Config, errorHandler func(router.Context, error) error, optional bool) jwtware.Config {
	validator, _ := a.tokenValidator()
	return jwtware.Config{
		ErrorHandler: errorHandler,
		SigningKey: jwtware.SigningKey{
			Key:    []byte(cfg.GetSigningKey()),
			JWTAlg: cfg.GetSigningMethod(),
		},
		AuthScheme:        cfg.GetAuthScheme(),
		ContextKey:        cfg.GetContextKey(),
		TokenLookup:       cfg.GetTokenLookup(),
		TokenValidator:    validator,
		IdentityValidator: a.identityValidator(),
		Optional:          optional,
		ContextEnricher:   ContextEnricherAdapter,
	}
}

type tokenServiceProvider interface {
	TokenService() TokenService
}

type subjectVerifier interface {
	VerifySessionSubject(ctx context.Context, subject string) error
}

// identityValidator resolves the token subject through the account store on
// every gated request, so revoked accounts lose access before token expiry.
func (a *RouteAuthenticator) identityValidator() func(router.Context, jwtware.AuthClaims) error {
	verifier, ok := a.auth.(subjectVerifier)
	if !ok {
		return nil
	}
	return func(c router.Context, claims jwtware.AuthClaims) error {
		return verifier.VerifySessionSubject(c.Context(), claims.Subject())
	}
}

func (a *RouteAuthenticator) tokenValidator() (jwtware.TokenValidator, bool) {
	provider, ok := a.auth.(tokenServiceProvider)
	if !ok {
		return nil, false
	}
	return jwtTokenValidator{svc: provider.TokenService()}, true
}

// jwtTokenValidator bridges TokenService to the jwtware validator interface.
type jwtTokenValidator struct {
	svc TokenService
}

func (v jwtTokenValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := v.svc.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Login exchanges credentials for a signed token. The token is returned for
// API clients and also set as an HTTP-only cookie for browser sessions.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) (string, error) {
	token, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return "", err
	}

	a.setCookieToken(ctx, token, a.cookieDuration)
	return token, nil
}

func (a *RouteAuthenticator) Logout(ctx router.Context) {
	a.cookieDel(ctx, a.cfg.GetContextKey())
}

func (a *RouteAuthenticator) Impersonate(c router.Context, identifier string) error {
	token, err := a.auth.Impersonate(c.Context(), identifier)
	if err != nil {
		a.Logger.Error("Impersonate authentication error", "error", err)
		return err
	}

	a.setCookieToken(c, token, a.cookieDuration)
	return nil
}

// MakeClientRouteAuthErrorHandler builds the error handler passed to the
// token middleware. In optional mode the request proceeds unauthenticated;
// otherwise the error is normalized and handed to the ErrorHandler.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.Path(),
	)

	return c.JSON(router.StatusUnauthorized, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		return c.JSON(richErr.Code, map[string]any{
			"error": richErr.Message,
		})
	}
}
