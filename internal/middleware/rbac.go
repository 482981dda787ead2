package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/skillup-api/internal/utils"
)

// RequireRole guards a route for authenticated users holding one of roles.
// Admins satisfy the instructor role; student routes accept students only.
func RequireRole(roles ...string) fiber.Handler {
	required := make([]string, 0, len(roles))
	for _, role := range roles {
		if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
			required = append(required, normalized)
		}
	}

	return func(c *fiber.Ctx) error {
		if c.Locals("user_id") == nil {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		current := normalizeRoleValue(c.Locals("user_role"))
		for _, role := range required {
			if roleSatisfies(current, role) {
				return c.Next()
			}
		}
		return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
	}
}

// roleSatisfies reports whether a user with role current may act as required.
func roleSatisfies(current, required string) bool {
	switch required {
	case AuthRoleAny:
		return true
	case AuthRoleInstructor:
		return current == AuthRoleInstructor || current == AuthRoleAdmin
	case "":
		return false
	default:
		return current == required
	}
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		if value == nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
