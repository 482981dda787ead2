package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func newGradebookApp(userID interface{}, role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID != nil {
			c.Locals("user_id", userID)
		}
		if role != "" {
			c.Locals("user_role", role)
		}
		return c.Next()
	})
	app.Get("/grades/course/1", RequireRole(AuthRoleInstructor), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireRoleAllowsInstructorsAndAdmins(t *testing.T) {
	for _, role := range []string{"Instructor", "admin"} {
		app := newGradebookApp(uint(4), role)
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/grades/course/1", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, role)
	}
}

func TestRequireRoleRejectsStudents(t *testing.T) {
	app := newGradebookApp(uint(4), "student")
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/grades/course/1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequireRoleRequiresUser(t *testing.T) {
	app := newGradebookApp(nil, "instructor")
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/grades/course/1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRoleSatisfies(t *testing.T) {
	require.True(t, roleSatisfies("admin", AuthRoleInstructor))
	require.True(t, roleSatisfies("student", AuthRoleStudent))
	require.True(t, roleSatisfies("", AuthRoleAny))
	require.False(t, roleSatisfies("admin", AuthRoleStudent))
	require.False(t, roleSatisfies("instructor", AuthRoleAdmin))
	require.False(t, roleSatisfies("student", ""))
}
