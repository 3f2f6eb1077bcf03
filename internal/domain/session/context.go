package session

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/geo"
)

// RequestContext is the client-observable surface of a request: where it
// came from and what it claims to be. A snapshot is stored on the
// session at creation and compared against on every validation.
type RequestContext struct {
	IP                string        `json:"ip" validate:"required,ip"`
	UserAgent         string        `json:"user_agent" validate:"required,max=1024"`
	DeviceFingerprint string        `json:"device_fingerprint" validate:"required,min=16,max=512"`
	Path              string        `json:"path,omitempty" validate:"omitempty,max=2048"`
	Method            string        `json:"method,omitempty" validate:"omitempty,max=16"`
	Location          *geo.Location `json:"location,omitempty"`
}

// CreationInput carries everything needed to create a session.
type CreationInput struct {
	UserID     string `validate:"required,min=1,max=128"`
	Role       string `validate:"omitempty,oneof=user moderator admin service"`
	MFAEnabled bool
	Type       Type
	Context    RequestContext
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateCreationInput checks a creation request and returns an
// InvalidContextError naming the first offending field.
func ValidateCreationInput(in *CreationInput) error {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &InvalidContextError{
				Field:  strings.ToLower(fe.Field()),
				Reason: tagReason(fe),
			}
		}
		return &InvalidContextError{Field: "input", Reason: err.Error()}
	}
	return nil
}

// tagReason renders a validator failure as a short human reason.
func tagReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "missing"
	case "ip":
		return "not a valid IP address"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "unsupported value"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// Roles understood by the permission model. Unknown roles degrade to
// the user permission set.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
	RoleService   = "service"
)

var rolePermissions = map[string][]string{
	RoleUser:      {"read", "write"},
	RoleModerator: {"read", "write", "moderate"},
	RoleAdmin:     {"read", "write", "moderate", "admin"},
	RoleService:   {"read", "write", "service"},
}

// PermissionsForRole returns the permission set granted to a role. The
// returned slice is a copy.
func PermissionsForRole(role string) []string {
	perms, ok := rolePermissions[role]
	if !ok {
		perms = rolePermissions[RoleUser]
	}
	return append([]string(nil), perms...)
}
