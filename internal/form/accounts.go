package form

import (
	"strconv"

	"github.com/erazemk/evidenca/internal/model"
)

var passwordRules = []Rule{Required{}, Length{Min: model.MinPasswordLength, Max: 72}}

var confirmPassword = CrossRule{
	Field: "confirm",
	Check: func(v Values) string {
		if v["confirm"] != v["password"] {
			return "does not match the password"
		}
		return ""
	},
}

// Account forms. They are validated the same way as entity forms but are
// not backed by a collection.
var (
	Login = &Schema{
		Entity: "login",
		Fields: []Field{
			{Name: "email", Label: "Email", Widget: Email{}, Rules: []Rule{Required{}}},
			{Name: "password", Label: "Password", Widget: Password{Autocomplete: "current-password"}, Rules: []Rule{Required{}}},
		},
	}

	Register = &Schema{
		Entity: "register",
		Fields: []Field{
			{Name: "name", Label: "Name", Widget: Text{}, Rules: []Rule{Required{}, Length{Max: 120}}},
			{Name: "email", Label: "Email", Widget: Email{}, Rules: []Rule{Required{}}},
			{Name: "password", Label: "Password", Help: "At least " + strconv.Itoa(model.MinPasswordLength) + " characters", Widget: Password{Autocomplete: "new-password"}, Rules: passwordRules},
			{Name: "confirm", Label: "Repeat password", Widget: Password{Autocomplete: "new-password"}, Rules: []Rule{Required{}}},
			{Name: "locale", Label: "Locale", Widget: Text{Placeholder: "en-US"}, Rules: []Rule{localeRule}},
		},
		Cross: []CrossRule{confirmPassword},
	}

	ForgotPassword = &Schema{
		Entity: "forgot-password",
		Fields: []Field{
			{Name: "email", Label: "Email", Widget: Email{}, Rules: []Rule{Required{}}},
		},
	}

	ResetPassword = &Schema{
		Entity: "reset-password",
		Fields: []Field{
			{Name: "password", Label: "New password", Widget: Password{Autocomplete: "new-password"}, Rules: passwordRules},
			{Name: "confirm", Label: "Repeat password", Widget: Password{Autocomplete: "new-password"}, Rules: []Rule{Required{}}},
		},
		Cross: []CrossRule{confirmPassword},
	}

	ChangePassword = &Schema{
		Entity: "change-password",
		Fields: []Field{
			{Name: "currentPassword", Label: "Current password", Widget: Password{Autocomplete: "current-password"}, Rules: []Rule{Required{}}},
			{Name: "password", Label: "New password", Widget: Password{Autocomplete: "new-password"}, Rules: passwordRules},
			{Name: "confirm", Label: "Repeat password", Widget: Password{Autocomplete: "new-password"}, Rules: []Rule{Required{}}},
		},
		Cross: []CrossRule{confirmPassword},
	}
)
