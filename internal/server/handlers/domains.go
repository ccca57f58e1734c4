package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"cfsub/internal/models"
	"cfsub/internal/services"
)

// Domains lists the stored ranking, fastest first.
func (h *Handler) Domains(c *fiber.Ctx) error {
	list, err := h.Repo.All(c.UserContext())
	if err != nil {
		h.log().WithError(err).Error("list candidates")
		return writeError(c, fiber.StatusInternalServerError, models.AppError{
			Code:    "INTERNAL",
			Message: "failed to read ranking",
			Stage:   "list",
		})
	}
	if list == nil {
		list = []models.Candidate{}
	}
	return c.JSON(fiber.Map{"success": true, "count": len(list), "data": list})
}

// Refresh runs a ranking cycle synchronously.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	list, err := h.Refresher.Refresh(c.UserContext())
	if err != nil {
		status, stage := fiber.StatusInternalServerError, "refresh"
		if errors.Is(err, services.ErrPersist) {
			stage = "persist"
		}
		return writeError(c, status, models.AppError{
			Code:    "REFRESH_FAILED",
			Message: err.Error(),
			Stage:   stage,
			Hint:    "the previous ranking is still served",
		})
	}
	return c.JSON(fiber.Map{"success": true, "count": len(list)})
}
