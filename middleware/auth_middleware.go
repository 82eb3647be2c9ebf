package middleware

import (
	"strings"

	config "github.com/anjiri1684/tutor_fees/configs"
	"github.com/anjiri1684/tutor_fees/models"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
)

func Protected() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(config.Config("JWT_SECRET")),
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if strings.EqualFold(err.Error(), "Missing or malformed JWT") {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

// Role returns the role claim of the authenticated user, or "" when the
// request carries no parsed token.
func Role(c *fiber.Ctx) string {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	role, _ := claims["role"].(string)
	return role
}

func requireRole(message string, roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := Role(c)
		for _, allowed := range roles {
			if role == allowed {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": message,
		})
	}
}

func AdminRequired() fiber.Handler {
	return requireRole("Forbidden: Admin access required", models.RoleAdmin)
}

func TeacherRequired() fiber.Handler {
	return requireRole("Forbidden: Teacher access required", models.RoleTeacher)
}

func StudentRequired() fiber.Handler {
	return requireRole("Forbidden: Student access required", models.RoleStudent)
}

// TeacherOrAdmin guards the fee write endpoints.
func TeacherOrAdmin() fiber.Handler {
	return requireRole("Forbidden: Teacher or admin access required", models.RoleTeacher, models.RoleAdmin)
}
