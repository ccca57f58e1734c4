package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"cfsub/internal/models"
	"cfsub/internal/services"
)

// Subscribe returns the rewritten subscription as a base64 text document.
// Query: url (required), max, max_latency, include, exclude.
func (h *Handler) Subscribe(c *fiber.Ctx) error {
	source := strings.TrimSpace(c.Query("url"))
	if source == "" {
		return writeError(c, fiber.StatusBadRequest, models.AppError{
			Code:    "INVALID_ARGUMENT",
			Message: "missing url param",
			Stage:   "validate_request",
			Hint:    "pass a subscription URL or the subscription text itself",
		})
	}

	opts := services.SelectOptions{
		Count:   positiveInt(c.Query("max")),
		Include: c.Query("include"),
		Exclude: c.Query("exclude"),
	}
	if v := positiveInt(c.Query("max_latency")); v > 0 {
		opts.MaxLatency = &v
	}

	doc, err := h.Subscriber.Generate(c.UserContext(), source, opts)
	if err != nil {
		var ie *services.InputError
		if errors.As(err, &ie) {
			return writeError(c, fiber.StatusBadRequest, models.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: ie.Error(),
				Stage:   "select",
			})
		}
		h.log().WithError(err).Error("generate subscription")
		return writeError(c, fiber.StatusInternalServerError, models.AppError{
			Code:    "INTERNAL",
			Message: "failed to generate subscription",
			Stage:   "rewrite",
		})
	}

	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	return c.SendString(doc)
}

// positiveInt parses s, returning 0 for anything that is not a positive integer.
func positiveInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
