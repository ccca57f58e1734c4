package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"cfsub/internal/models"
	"cfsub/internal/services"
)

// OptimizedIPs lists carrier-specific edge addresses from the optimized-IP feed.
func (h *Handler) OptimizedIPs(c *fiber.Ctx) error {
	isp := strings.ToLower(c.Query("isp", "cm"))
	if !services.ValidISP(isp) {
		return writeError(c, fiber.StatusBadRequest, models.AppError{
			Code:    "INVALID_ARGUMENT",
			Message: "isp must be one of ct, cm, cu",
			Stage:   "validate_request",
		})
	}
	count := c.QueryInt("count", 6)
	ips := h.Feed.OptimizedIPs(c.UserContext(), isp, count)
	return c.JSON(fiber.Map{"success": true, "isp": isp, "data": ips})
}
