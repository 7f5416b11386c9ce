package auth

import (
	"strings"

	"github.com/goliatone/go-router"
)

// Requirement is what a matched rule demands from the request.
type Requirement int

const (
	// Public requests proceed with or without a principal
	Public Requirement = iota
	// Authenticated requests are rejected unless a principal was attached
	Authenticated
)

func (r Requirement) String() string {
	if r == Authenticated {
		return "authenticated"
	}
	return "public"
}

// Rule pairs a request matcher with a requirement. Method is an HTTP verb
// or empty for any. Pattern grammar:
//
//	/api/auth/*        prefix match, any depth
//	/api/sellers/:id   single-segment wildcard
//	/api/products      exact match
type Rule struct {
	Method  string
	Pattern string
	Require Requirement
}

// Matches evaluates the rule against a request method and path.
func (r Rule) Matches(method, path string) bool {
	if r.Method != "" && !strings.EqualFold(r.Method, method) {
		return false
	}
	return matchPattern(r.Pattern, path)
}

// Policy is the ordered route authorization table. Rules evaluate top to
// bottom, first match wins; requests matching no rule get the fallback.
// The table is immutable once built, so concurrent evaluation needs no
// locking.
type Policy struct {
	rules    []Rule
	fallback Requirement
}

// NewPolicy builds a policy with a Public fallback for unmatched requests
// (static assets, SPA routes).
func NewPolicy(rules ...Rule) *Policy {
	return &Policy{rules: rules, fallback: Public}
}

// WithFallback overrides the requirement applied when no rule matches.
func (p *Policy) WithFallback(req Requirement) *Policy {
	p.fallback = req
	return p
}

// Evaluate returns the requirement for a request method and path.
func (p *Policy) Evaluate(method, path string) Requirement {
	for _, rule := range p.rules {
		if rule.Matches(method, path) {
			return rule.Require
		}
	}
	return p.fallback
}

// Rules returns a copy of the rule table for introspection.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// RejectHandler produces the response for a protected request that carries
// no principal.
type RejectHandler func(c router.Context) error

// DefaultRejectHandler answers 401 without leaking why.
func DefaultRejectHandler(c router.Context) error {
	return c.JSON(router.StatusUnauthorized, map[string]string{
		"error": "authentication required",
	})
}

// Middleware enforces the policy after the identity gate has run. The gate
// only resolves identity; this is the one place requests are actually
// rejected, before any business handler executes. contextKey is the locals
// key under which the gate stored the request's claims.
func (p *Policy) Middleware(contextKey string, onReject RejectHandler) router.MiddlewareFunc {
	if contextKey == "" {
		contextKey = "user"
	}
	if onReject == nil {
		onReject = DefaultRejectHandler
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if p.Evaluate(ctx.Method(), ctx.Path()) == Public {
				return next(ctx)
			}

			if _, ok := ctx.Locals(contextKey).(AuthClaims); !ok {
				return onReject(ctx)
			}

			return next(ctx)
		}
	}
}

func matchPattern(pattern, path string) bool {
	if pattern == "" {
		return false
	}

	// prefix rules: "/api/auth/*" also covers the bare "/api/auth"
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(path, prefix) || path == strings.TrimSuffix(prefix, "/")
	}

	if !strings.Contains(pattern, ":") {
		return pattern == path
	}

	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(path, "/"), "/")
	if len(patternParts) != len(pathParts) {
		return false
	}

	for i, part := range patternParts {
		if strings.HasPrefix(part, ":") {
			if pathParts[i] == "" {
				return false
			}
			continue
		}
		if part != pathParts[i] {
			return false
		}
	}

	return true
}
