package identity_test

import (
	"testing"

	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRequest_Validate(t *testing.T) {
	valid := identity.RegisterRequest{
		Username:        "alice",
		Email:           "alice@example.com",
		Password:        "securePassword123!",
		ConfirmPassword: "securePassword123!",
	}

	t.Run("valid payload passes", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("username too short", func(t *testing.T) {
		r := valid
		r.Username = "ab"
		assert.Error(t, r.Validate())
	})

	t.Run("malformed email", func(t *testing.T) {
		r := valid
		r.Email = "not-an-email"
		assert.Error(t, r.Validate())
	})

	t.Run("password too short", func(t *testing.T) {
		r := valid
		r.Password = "short"
		r.ConfirmPassword = "short"
		assert.Error(t, r.Validate())
	})

	t.Run("password confirmation mismatch", func(t *testing.T) {
		r := valid
		r.ConfirmPassword = "differentPassword!"
		assert.Error(t, r.Validate())
	})

	t.Run("phone is optional", func(t *testing.T) {
		r := valid
		r.Phone = ""
		assert.NoError(t, r.Validate())
	})

	t.Run("missing fields are reported per field", func(t *testing.T) {
		err := identity.RegisterRequest{}.Validate()
		require.Error(t, err)

		fields := identity.FormatValidationErrorToMap(err)
		assert.Contains(t, fields, "username")
		assert.Contains(t, fields, "email")
		assert.Contains(t, fields, "password")
	})
}

func TestLoginRequest_Validate(t *testing.T) {
	t.Run("valid payload passes", func(t *testing.T) {
		r := identity.LoginRequest{Username: "alice", Password: "whatever"}
		assert.NoError(t, r.Validate())
		assert.Equal(t, "alice", r.GetIdentifier())
		assert.Equal(t, "whatever", r.GetPassword())
	})

	t.Run("missing username fails", func(t *testing.T) {
		r := identity.LoginRequest{Password: "whatever"}
		assert.Error(t, r.Validate())
	})

	t.Run("missing password fails", func(t *testing.T) {
		r := identity.LoginRequest{Username: "alice"}
		assert.Error(t, r.Validate())
	})
}

func TestOtpLoginRequest_Validate(t *testing.T) {
	t.Run("numeric code passes", func(t *testing.T) {
		r := identity.OtpLoginRequest{Username: "alice", Code: "123456"}
		assert.NoError(t, r.Validate())
	})

	t.Run("non numeric code fails", func(t *testing.T) {
		r := identity.OtpLoginRequest{Username: "alice", Code: "12a456"}
		assert.Error(t, r.Validate())
	})

	t.Run("missing code fails", func(t *testing.T) {
		r := identity.OtpLoginRequest{Username: "alice"}
		assert.Error(t, r.Validate())
	})
}

func TestConfirmEmailRequest_Validate(t *testing.T) {
	t.Run("valid payload passes", func(t *testing.T) {
		r := identity.ConfirmEmailRequest{Token: "tok", Email: "alice@example.com"}
		assert.NoError(t, r.Validate())
	})

	t.Run("missing token fails", func(t *testing.T) {
		r := identity.ConfirmEmailRequest{Email: "alice@example.com"}
		assert.Error(t, r.Validate())
	})

	t.Run("malformed email fails", func(t *testing.T) {
		r := identity.ConfirmEmailRequest{Token: "tok", Email: "nope"}
		assert.Error(t, r.Validate())
	})
}

func TestRenewTokenRequest_Validate(t *testing.T) {
	t.Run("both tokens required", func(t *testing.T) {
		assert.Error(t, identity.RenewTokenRequest{AccessToken: "a"}.Validate())
		assert.Error(t, identity.RenewTokenRequest{RefreshToken: "r"}.Validate())
		assert.NoError(t, identity.RenewTokenRequest{AccessToken: "a", RefreshToken: "r"}.Validate())
	})
}

func TestForgotPasswordRequest_Validate(t *testing.T) {
	assert.NoError(t, identity.ForgotPasswordRequest{Email: "alice@example.com"}.Validate())
	assert.Error(t, identity.ForgotPasswordRequest{}.Validate())
	assert.Error(t, identity.ForgotPasswordRequest{Email: "nope"}.Validate())
}

func TestResetPasswordRequest_Validate(t *testing.T) {
	valid := identity.ResetPasswordRequest{
		Email:           "alice@example.com",
		Token:           "tok",
		Password:        "brandNewPassword456!",
		ConfirmPassword: "brandNewPassword456!",
	}

	t.Run("valid payload passes", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("mismatched confirmation fails", func(t *testing.T) {
		r := valid
		r.ConfirmPassword = "different"
		assert.Error(t, r.Validate())
	})

	t.Run("missing token fails", func(t *testing.T) {
		r := valid
		r.Token = ""
		assert.Error(t, r.Validate())
	})
}

func TestFormatValidationErrorToMap(t *testing.T) {
	t.Run("nil error yields empty map", func(t *testing.T) {
		assert.Empty(t, identity.FormatValidationErrorToMap(nil))
	})

	t.Run("validation errors keyed by field", func(t *testing.T) {
		err := identity.LoginRequest{}.Validate()
		require.Error(t, err)

		fields := identity.FormatValidationErrorToMap(err)
		assert.Contains(t, fields, "username")
		assert.Contains(t, fields, "password")
	})

	t.Run("plain errors fall under a generic key", func(t *testing.T) {
		fields := identity.FormatValidationErrorToMap(assert.AnError)
		assert.Contains(t, fields, "error")
	})
}
