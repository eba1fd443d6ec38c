// FILE: internal/controller/webhook_controller.go
package controller

import (
	"errors"

	"club-directory-be/internal/dto"
	"club-directory-be/internal/pkg/logger"
	"club-directory-be/internal/pkg/serverutils"
	"club-directory-be/internal/service"
	"club-directory-be/pkg/payment"

	"github.com/gofiber/fiber/v2"
)

const stripeSignatureHeader = "Stripe-Signature"

type IWebhookController interface {
	RegisterRoutes(r fiber.Router)
	HandleStripe(ctx *fiber.Ctx) error
}

type webhookController struct {
	service service.IWebhookService
	logger  logger.ILogger
}

func NewWebhookController(service service.IWebhookService, log logger.ILogger) IWebhookController {
	return &webhookController{
		service: service,
		logger:  log,
	}
}

func (c *webhookController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/webhooks")
	h.Post("/stripe", c.HandleStripe)
}

func (c *webhookController) HandleStripe(ctx *fiber.Ctx) error {
	// fasthttp reuses the body buffer after the handler returns
	payload := append([]byte(nil), ctx.Body()...)
	signature := ctx.Get(stripeSignatureHeader)

	outcome, err := c.service.Handle(ctx.UserContext(), payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid webhook signature"))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	if outcome.ShouldRetry() {
		c.logger.Warn(logger.ModuleHTTP, "Webhook failed, asking provider to retry", map[string]interface{}{
			"event_id":   outcome.EventId,
			"event_type": outcome.EventType,
			"result":     outcome.Result.String(),
		})
		// 500 makes Stripe redeliver the event
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, "webhook processing failed"))
	}

	return ctx.JSON(dto.WebhookResponse{
		Received: true,
		EventId:  outcome.EventId,
		Status:   string(outcome.Status),
	})
}
