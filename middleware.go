package identity

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// DefaultContextKey is where validated claims are stored in the router
// context locals.
const DefaultContextKey = "identity"

// DefaultAuthScheme is the Authorization header scheme.
const DefaultAuthScheme = "Bearer"

// MiddlewareConfig configures the access token guard.
type MiddlewareConfig struct {
	// Tokens validates raw access tokens. Required.
	Tokens TokenService
	// ContextKey is the locals key for the validated claims.
	ContextKey string
	// AuthScheme is the expected Authorization scheme.
	AuthScheme string
	// RequiredRole, when set, rejects tokens whose claims lack the role.
	RequiredRole string
	// Filter skips the guard for matching requests.
	Filter func(router.Context) bool
	// ErrorHandler renders authentication failures.
	ErrorHandler func(router.Context, error) error
}

// RequireAccessToken is a route guard: it extracts the bearer token,
// validates signature and expiry, optionally checks a role, and exposes
// the claims through locals and the request context.
func RequireAccessToken(config MiddlewareConfig) router.MiddlewareFunc {
	if config.Tokens == nil {
		panic("Missing TokenService in access token middleware...")
	}

	if config.ContextKey == "" {
		config.ContextKey = DefaultContextKey
	}
	if config.AuthScheme == "" {
		config.AuthScheme = DefaultAuthScheme
	}
	if config.ErrorHandler == nil {
		config.ErrorHandler = defaultMiddlewareErrHandler
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if config.Filter != nil && config.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := bearerToken(ctx, config.AuthScheme)
			if err != nil {
				return config.ErrorHandler(ctx, err)
			}

			claims, err := config.Tokens.Validate(raw)
			if err != nil {
				return config.ErrorHandler(ctx, err)
			}

			if config.RequiredRole != "" && !claims.HasRole(config.RequiredRole) {
				return config.ErrorHandler(ctx, errors.New("missing required role", errors.CategoryAuthz).
					WithCode(errors.CodeForbidden).
					WithMetadata(map[string]any{"role": config.RequiredRole}))
			}

			ctx.Locals(config.ContextKey, claims)
			ctx.SetContext(WithClaimsContext(ctx.Context(), claims))

			return hf(ctx)
		}
	}
}

func bearerToken(ctx router.Context, scheme string) (string, error) {
	header := ctx.GetString(router.HeaderAuthorization, "")
	if header == "" {
		return "", errors.New("missing authorization header", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	}

	l := len(scheme)
	if len(header) > l+1 && strings.EqualFold(header[:l], scheme) {
		return strings.TrimSpace(header[l:]), nil
	}

	return "", errors.New("missing or malformed token", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized)
}

func defaultMiddlewareErrHandler(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
			WithCode(errors.CodeUnauthorized)
	}

	statusCode := richErr.Code
	if statusCode == 0 {
		statusCode = fiber.StatusUnauthorized
	}

	return ctx.JSON(statusCode, APIError{
		Message:    richErr.Message,
		StatusCode: statusCode,
		TextCode:   richErr.TextCode,
	})
}
