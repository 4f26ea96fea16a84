package member

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kanisa/core"
)

var (
	baseRoleTag  = "baserole"
	baseRoleText = "invalid role"

	usernameOrEmailTag  = "username_or_email"
	usernameOrEmailText = "one of username or email is required"
)

// register custom validators
func init() {
	_ = core.Validate.RegisterValidation(baseRoleTag, baseRoleValidation)
	core.RegisterCustomTranslation(baseRoleTag, baseRoleText)

	core.Validate.RegisterStructValidation(newMemberStructValidation, NewMember{})
	core.RegisterCustomTranslation(usernameOrEmailTag, usernameOrEmailText)
}

// Custom Validators

// baseRoleValidation checks that the provided base role is known.
func baseRoleValidation(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case RoleManager, RoleMember:
		return true
	}
	return false
}

// newMemberStructValidation does NewMember's struct level validation
func newMemberStructValidation(sl validator.StructLevel) {
	if nm, ok := sl.Current().Interface().(NewMember); ok {
		// one of Username or Email is required
		if len(nm.Username) == 0 && len(nm.Email) == 0 {
			sl.ReportError(nm.Username, "username", "Username", usernameOrEmailTag, "")
			sl.ReportError(nm.Email, "email", "Email", usernameOrEmailTag, "")
		}
	}
}
