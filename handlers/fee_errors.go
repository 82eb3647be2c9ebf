package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/anjiri1684/tutor_fees/services"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var errForbidden = errors.New("you do not have access to this enrollment")

// feeError writes the HTTP form of a fee engine error.
func feeError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, errForbidden):
		code = fiber.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, services.ErrScheduleMismatch):
		code = fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidPlan), errors.Is(err, services.ErrInvalidPayment):
		code = fiber.StatusBadRequest
	case errors.Is(err, services.ErrDuplicateObligation), errors.Is(err, services.ErrConcurrencyConflict):
		code = fiber.StatusConflict
	}
	if code == fiber.StatusInternalServerError {
		log.Printf("🔥 %s %s failed: %v", c.Method(), c.Path(), err)
		return c.Status(code).JSON(fiber.Map{"error": "Internal server error"})
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func currentUser(c *fiber.Ctx) (uuid.UUID, string) {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ := uuid.Parse(claims["user_id"].(string))
	role, _ := claims["role"].(string)
	return userID, role
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	return id, nil
}

// parseDate accepts a calendar date (2006-01-02) or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "Invalid date "+s+", use YYYY-MM-DD")
	}
	return t, nil
}

func optionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
