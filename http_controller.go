package auth

import (
	"errors"
	"time"

	goaway "github.com/TwiN/go-away"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
)

// AuthController exposes the authentication workflows over HTTP
type AuthController struct {
	Logger     Logger
	Repo       RepositoryManager
	Guard      *Guard
	Auther     *Auther
	Dispatcher *Dispatcher

	register       *RegisterUserHandler
	confirm        *ConfirmAccountHandler
	verification   *VerificationRequestHandler
	resetInit      *InitializePasswordResetHandler
	resetCheck     *CheckPasswordResetHandler
	resetFinalize  *FinalizePasswordResetHandler
	cookieName     string
	cookieDuration time.Duration
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerDispatcher(dispatcher *Dispatcher) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Dispatcher = dispatcher
		return c
	}
}

// WithControllerConfig pulls controller options from application config
func WithControllerConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if cfg != nil {
			return WithControllerCookieName(cfg.GetSessionCookieName())(c)
		}
		return c
	}
}

func WithControllerCookieName(name string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if name != "" {
			c.cookieName = name
		}
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:         defLogger{},
		cookieName:     DefaultSessionCookieName,
		cookieDuration: SessionDuration,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Guard == nil {
		c.Guard = NewGuard(c.Repo, WithGuardCookieName(c.cookieName), WithGuardLogger(c.Logger))
	}

	if c.Auther == nil {
		c.Auther = NewAuthenticator(c.Repo).WithLogger(c.Logger)
	}

	c.register = NewRegisterUserHandler(c.Repo, c.Dispatcher).WithLogger(c.Logger)
	c.confirm = NewConfirmAccountHandler(c.Repo).WithLogger(c.Logger)
	c.verification = NewVerificationRequestHandler(c.Repo, c.Dispatcher).WithLogger(c.Logger)
	c.resetInit = NewInitializePasswordResetHandler(c.Repo, c.Dispatcher).WithLogger(c.Logger)
	c.resetCheck = NewCheckPasswordResetHandler(c.Repo).WithLogger(c.Logger)
	c.resetFinalize = NewFinalizePasswordResetHandler(c.Repo, c.Dispatcher).WithLogger(c.Logger)

	return c
}

// RegisterAuthRoutes mounts the auth workflows under /auth
func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	group := app.Group("/auth")
	group.Post("/register", controller.Register)
	group.Post("/login", controller.Login)
	group.Post("/logout", controller.Logout)
	group.Get("/me", controller.Me)
	group.Get("/confirm/:token", controller.Confirm)
	group.Post("/resend-verification", controller.ResendVerification)
	group.Post("/initiate-reset", controller.InitiateReset)
	group.Get("/reset-password/:token", controller.CheckReset)
	group.Post("/reset-password/:token", controller.FinalizeReset)

	return controller
}

// RegistrationPayload is the register request body
type RegistrationPayload struct {
	Name            string `json:"name" form:"name"`
	Username        string `json:"username" form:"username"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name,
			validation.Required,
			validation.Length(1, 200),
			validation.By(validateNoControlCharacters),
		),
		validation.Field(&r.Username,
			validation.Required,
			validation.Length(3, 30),
			validation.By(validateCleanUsername),
		),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(8, 72),
			validation.By(validateNoControlCharacters),
		),
		validation.Field(&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) Register(c *fiber.Ctx) error {
	payload := new(RegistrationPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("register parse payload: %v", err)
		return a.badRequest(c, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return WriteError(c, a.Logger, err)
	}

	var resp *RegisterUserResponse
	msg := RegisterUserMessage{
		Name:            payload.Name,
		Username:        payload.Username,
		Email:           payload.Email,
		Password:        payload.Password,
		SessionMetadata: sessionMetadata(c),
		OnResponse: func(r *RegisterUserResponse) {
			resp = r
		},
	}

	if err := a.register.Execute(c.UserContext(), msg); err != nil {
		return WriteError(c, a.Logger, err)
	}

	a.setSessionToken(c, resp.SessionToken)

	return c.JSON(resp.User)
}

// LoginPayload is the login request body
type LoginPayload struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Validate will validate the payload
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username,
			validation.Required,
			validation.Length(3, 0),
			validation.By(validateNoControlCharacters),
		),
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(8, 72),
			validation.By(validateNoControlCharacters),
		),
	)
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	payload := new(LoginPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return a.badRequest(c, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return WriteError(c, a.Logger, err)
	}

	token, user, err := a.Auther.LoginWithMetadata(c.UserContext(), payload.Username, payload.Password, sessionMetadata(c))
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	a.setSessionToken(c, token)

	return c.JSON(user)
}

func (a *AuthController) Logout(c *fiber.Ctx) error {
	authorized, err := a.Guard.LoggedInUser(c)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	if err := a.Auther.Logout(c.UserContext(), authorized.SessionID, authorized.User.ID); err != nil {
		return WriteError(c, a.Logger, err)
	}

	a.clearSessionToken(c)

	return c.SendStatus(fiber.StatusNoContent)
}

func (a *AuthController) Me(c *fiber.Ctx) error {
	authorized, err := a.Guard.LoggedInUser(c)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(authorized.User)
}

func (a *AuthController) Confirm(c *fiber.Ctx) error {
	authorized, err := a.Guard.LoggedInUser(c)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	msg := ConfirmAccountMessage{
		Token: c.Params("token"),
		User:  authorized.User,
	}

	if err := a.confirm.Execute(c.UserContext(), msg); err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{
		"level":   "success",
		"message": "Account verified",
	})
}

func (a *AuthController) ResendVerification(c *fiber.Ctx) error {
	authorized, err := a.Guard.LoggedInUser(c)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	msg := VerificationRequestMessage{User: authorized.User}
	if err := a.verification.Execute(c.UserContext(), msg); err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{
		"level":   "success",
		"message": "Verification email sent",
	})
}

// InitiateResetPayload carries the account identifier, email or username
type InitiateResetPayload struct {
	Identifier string `json:"identifier" form:"identifier"`
}

// Validate will validate the payload
func (r InitiateResetPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier,
			validation.Required,
			validation.Length(3, 100),
			validation.By(validateNoControlCharacters),
		),
	)
}

func (a *AuthController) InitiateReset(c *fiber.Ctx) error {
	payload := new(InitiateResetPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("initiate reset parse payload: %v", err)
		return a.badRequest(c, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return WriteError(c, a.Logger, err)
	}

	msg := InitializePasswordResetMessage{Identifier: payload.Identifier}
	if err := a.resetInit.Execute(c.UserContext(), msg); err != nil {
		return WriteError(c, a.Logger, err)
	}

	// same response whether the account exists or not
	return c.JSON(fiber.Map{
		"level":   "success",
		"message": "If the account exists, a reset link is on its way",
	})
}

func (a *AuthController) CheckReset(c *fiber.Ctx) error {
	var resp *CheckPasswordResetResponse
	msg := CheckPasswordResetMessage{
		Token: c.Params("token"),
		OnResponse: func(r *CheckPasswordResetResponse) {
			resp = r
		},
	}

	if err := a.resetCheck.Execute(c.UserContext(), msg); err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(resp)
}

// FinalizeResetPayload carries the replacement password
type FinalizeResetPayload struct {
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// Validate will validate the payload
func (r FinalizeResetPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(8, 72),
			validation.By(validateNoControlCharacters),
		),
		validation.Field(&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) FinalizeReset(c *fiber.Ctx) error {
	payload := new(FinalizeResetPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("finalize reset parse payload: %v", err)
		return a.badRequest(c, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return WriteError(c, a.Logger, err)
	}

	var resp *FinalizePasswordResetResponse
	msg := FinalizePasswordResetMessage{
		Token:           c.Params("token"),
		Password:        payload.Password,
		SessionMetadata: sessionMetadata(c),
		OnResponse: func(r *FinalizePasswordResetResponse) {
			resp = r
		},
	}

	if err := a.resetFinalize.Execute(c.UserContext(), msg); err != nil {
		return WriteError(c, a.Logger, err)
	}

	a.setSessionToken(c, resp.SessionToken)

	return c.JSON(resp.User)
}

func (a *AuthController) setSessionToken(c *fiber.Ctx, token string) {
	c.Set(fiber.HeaderAuthorization, token)
	c.Cookie(&fiber.Cookie{
		Name:     a.cookieName,
		Value:    token,
		Expires:  time.Now().Add(a.cookieDuration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *AuthController) clearSessionToken(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *AuthController) badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(&ErrorPayload{
		Level:   "error",
		Message: message,
		Status:  fiber.StatusBadRequest,
	})
}

func sessionMetadata(c *fiber.Ctx) map[string]any {
	return map[string]any{
		"ip":         c.IP(),
		"user_agent": string(c.Request().Header.UserAgent()),
	}
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

func validateNoControlCharacters(value any) error {
	s, _ := value.(string)
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return errors.New("control characters are not allowed")
		}
	}
	return nil
}

func validateCleanUsername(value any) error {
	s, _ := value.(string)

	for _, r := range s {
		if !isUsernameRune(r) {
			return errors.New("only letters, digits, '.' and '_' are allowed")
		}
	}

	if goaway.IsProfane(s) {
		return errors.New("username is not allowed")
	}

	return nil
}
