package identity

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
)

// RegisterRequest payload
type RegisterRequest struct {
	Username        string   `form:"username" json:"username"`
	Email           string   `form:"email" json:"email"`
	Phone           string   `form:"phone_number" json:"phone_number"`
	Password        string   `form:"password" json:"password"`
	ConfirmPassword string   `form:"confirm_password" json:"confirm_password"`
	Roles           []string `form:"roles" json:"roles"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Length(7, 20)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

// ConfirmEmailRequest payload
type ConfirmEmailRequest struct {
	Token string `form:"token" json:"token" query:"token"`
	Email string `form:"email" json:"email" query:"email"`
}

// Validate will run validation rules
func (r ConfirmEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Username
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// OtpLoginRequest payload
type OtpLoginRequest struct {
	Username string `form:"username" json:"username"`
	Code     string `form:"code" json:"code"`
}

// Validate will run validation rules
func (r OtpLoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Code, validation.Required, is.Digit),
	)
}

// RenewTokenRequest payload
type RenewTokenRequest struct {
	AccessToken  string `form:"access_token" json:"access_token"`
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

// Validate will run validation rules
func (r RenewTokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AccessToken, validation.Required),
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// ForgotPasswordRequest payload
type ForgotPasswordRequest struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ResetPasswordRequest payload
type ResetPasswordRequest struct {
	Email           string `form:"email" json:"email"`
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will run validation rules
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match", errors.CategoryValidation)
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field to message map suitable for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}
