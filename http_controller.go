package identity

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// APIError is the JSON shape of a failed request.
type APIError struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	StatusCode int               `json:"status_code"`
	TextCode   string            `json:"text_code,omitempty"`
	Validation map[string]string `json:"validation,omitempty"`
}

// AuthControllerRoutes holds the mount points for the auth endpoints.
type AuthControllerRoutes struct {
	Register       string
	ConfirmEmail   string
	Login          string
	LoginOtp       string
	RefreshToken   string
	ForgetPassword string
	ResetPassword  string
}

// AuthController exposes the engine over HTTP as a JSON API.
type AuthController struct {
	Debug  bool
	Logger Logger
	Engine *Orchestrator
	Routes *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

func WithAuthEngine(engine *Orchestrator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Engine = engine
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register:       "/auth/register",
			ConfirmEmail:   "/auth/confirm-email",
			Login:          "/auth/login",
			LoginOtp:       "/auth/login-2fa",
			RefreshToken:   "/auth/refresh-token",
			ForgetPassword: "/auth/forget-password",
			ResetPassword:  "/auth/reset-password",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Engine == nil {
		panic("Missing Orchestrator in auth controller...")
	}

	return c
}

func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.RegisterPost).
		SetName("auth.register.post")

	app.Get(controller.Routes.ConfirmEmail, controller.ConfirmEmailGet).
		SetName("auth.confirm-email.get")

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.sign-in.post")

	app.Post(controller.Routes.LoginOtp, controller.LoginOtpPost).
		SetName("auth.sign-in-2fa.post")

	app.Post(controller.Routes.RefreshToken, controller.RefreshTokenPost).
		SetName("auth.refresh.post")

	app.Post(controller.Routes.ForgetPassword, controller.ForgetPasswordPost).
		SetName("auth.pwd-forget.post")

	app.Get(controller.Routes.ResetPassword, controller.ResetPasswordGet).
		SetName("auth.pwd-reset.get")

	app.Post(controller.Routes.ResetPassword, controller.ResetPasswordPost).
		SetName("auth.pwd-reset.post")
}

func (a *AuthController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= AUTH REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("============================")
	}

	res := a.Engine.Register(ctx.Context(), RegisterPayload{
		Username: payload.Username,
		Email:    payload.Email,
		Phone:    payload.Phone,
		Password: payload.Password,
		Roles:    payload.Roles,
	})

	return writeResult(a, ctx, res)
}

func (a *AuthController) ConfirmEmailGet(ctx router.Context) error {
	payload := ConfirmEmailRequest{
		Token: ctx.Query("token"),
		Email: ctx.Query("email"),
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	res := a.Engine.ConfirmEmail(ctx.Context(), payload.Token, payload.Email)

	return writeResult(a, ctx, res)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	res := a.Engine.Login(ctx.Context(), payload.Username, payload.Password)
	if !res.Success {
		// do not disclose whether the account exists
		if res.Is(ErrAccountNotFound) || res.Is(ErrInvalidCredentials) || res.Is(ErrMismatchedHashAndPassword) {
			return ctx.JSON(fiber.StatusUnauthorized, APIError{
				Message:    "Invalid username or password",
				StatusCode: fiber.StatusUnauthorized,
				TextCode:   TextCodeInvalidCredentials,
			})
		}
	}

	return writeResult(a, ctx, res)
}

func (a *AuthController) LoginOtpPost(ctx router.Context) error {
	payload := new(OtpLoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	res := a.Engine.LoginWithOtp(ctx.Context(), payload.Code, payload.Username)

	return writeResult(a, ctx, res)
}

func (a *AuthController) RefreshTokenPost(ctx router.Context) error {
	payload := new(RenewTokenRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	res := a.Engine.Renew(ctx.Context(), TokenPair{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
	})

	return writeResult(a, ctx, res)
}

func (a *AuthController) ForgetPasswordPost(ctx router.Context) error {
	payload := new(ForgotPasswordRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	res := a.Engine.ForgotPassword(ctx.Context(), payload.Email)
	if res.Success {
		// uniform body, the delivery request stays server side
		return ctx.JSON(res.StatusCode, Result[any]{
			Success:    true,
			Message:    res.Message,
			StatusCode: res.StatusCode,
		})
	}

	return writeResult(a, ctx, res)
}

// ResetPasswordGet describes the reset form for clients that render it.
func (a *AuthController) ResetPasswordGet(ctx router.Context) error {
	token := ctx.Query("token")
	email := ctx.Query("email")

	if token == "" || email == "" {
		return ctx.JSON(fiber.StatusBadRequest, APIError{
			Message:    "token and email are required",
			StatusCode: fiber.StatusBadRequest,
		})
	}

	return ctx.JSON(fiber.StatusOK, router.ViewContext{
		"email":  email,
		"token":  token,
		"fields": []string{"password", "confirm_password"},
	})
}

func (a *AuthController) ResetPasswordPost(ctx router.Context) error {
	payload := new(ResetPasswordRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.invalidPayload(ctx, err)
	}

	res := a.Engine.ResetPassword(ctx.Context(), ResetPasswordPayload{
		Email:           payload.Email,
		Token:           payload.Token,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
	})

	return writeResult(a, ctx, res)
}

func (a *AuthController) badRequest(ctx router.Context, message string, err error) error {
	a.Logger.Error("auth controller parse payload: %v", err)
	return ctx.JSON(fiber.StatusBadRequest, APIError{
		Message:    message,
		StatusCode: fiber.StatusBadRequest,
	})
}

func (a *AuthController) invalidPayload(ctx router.Context, err error) error {
	a.Logger.Error("auth controller validate payload: %v", err)
	return ctx.JSON(fiber.StatusBadRequest, APIError{
		Message:    "Error validating payload",
		StatusCode: fiber.StatusBadRequest,
		Validation: FormatValidationErrorToMap(err),
	})
}

func writeResult[T any](a *AuthController, ctx router.Context, res Result[T]) error {
	if res.Success {
		return ctx.JSON(res.StatusCode, res)
	}

	if a.Debug {
		fmt.Println("======= AUTH ERROR ======")
		fmt.Println(print.MaybePrettyJSON(res.Err()))
		fmt.Println("=========================")
	}

	return ctx.JSON(res.StatusCode, APIError{
		Message:    res.Message,
		StatusCode: res.StatusCode,
		TextCode:   res.TextCode(),
	})
}
