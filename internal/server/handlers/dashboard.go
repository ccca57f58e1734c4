package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"cfsub/internal/models"
)

func (h *Handler) Dashboard(c *fiber.Ctx) error {
	list, err := h.Repo.All(c.UserContext())
	if err != nil {
		h.log().WithError(err).Error("dashboard: list candidates")
		return fiber.ErrInternalServerError
	}
	reachable := lo.Filter(list, func(d models.Candidate, _ int) bool { return d.Reachable() })
	byCategory := lo.CountValuesBy(list, func(d models.Candidate) models.Category { return d.Category })

	var updated any
	if len(list) > 0 {
		updated = lo.MaxBy(list, func(a, b models.Candidate) bool { return a.UpdatedAt.After(b.UpdatedAt) }).UpdatedAt
	}
	return c.Render("index", fiber.Map{
		"title":       "Edge candidates",
		"candidates":  list,
		"total":       len(list),
		"reachable":   len(reachable),
		"official":    byCategory[models.CategoryOfficial],
		"thirdParty":  byCategory[models.CategoryThirdParty],
		"mobile":      byCategory[models.CategoryMobile],
		"lastUpdated": updated,
	})
}
