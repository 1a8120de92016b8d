package rbac

import "strings"

// Role names. Keep these stable; they are stored on user rows and in session tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Normalize maps stored role spellings ("Admin", " user ") onto the constants.
// Unknown values fall back to RoleUser.
func Normalize(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

func IsAdmin(role string) bool { return Normalize(role) == RoleAdmin }
