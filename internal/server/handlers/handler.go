package handlers

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"cfsub/internal/models"
	"cfsub/internal/services"
)

// Subscriber renders optimized subscription documents.
type Subscriber interface {
	Generate(ctx context.Context, source string, opts services.SelectOptions) (string, error)
}

// IPFeed serves per-carrier optimized addresses.
type IPFeed interface {
	OptimizedIPs(ctx context.Context, isp string, count int) []string
}

// Handler carries the dependencies of every HTTP endpoint.
type Handler struct {
	Repo       services.CandidateRepository
	Refresher  services.Refresher
	Subscriber Subscriber
	Feed       IPFeed
	Log        logrus.FieldLogger
}

func (h *Handler) log() logrus.FieldLogger {
	if h.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}
	return h.Log
}

func writeError(c *fiber.Ctx, status int, appErr models.AppError) error {
	return c.Status(status).JSON(models.ErrorResponse{Error: appErr})
}
