// FILE: internal/controller/membership_controller.go
package controller

import (
	"errors"

	"club-directory-be/internal/dto"
	"club-directory-be/internal/pkg/serverutils"
	"club-directory-be/internal/service"
	"club-directory-be/pkg/lock"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IMembershipController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	GetMembership(ctx *fiber.Ctx) error
	PreviewCancellation(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
}

type membershipController struct {
	service service.IMembershipService
}

func NewMembershipController(service service.IMembershipService) IMembershipController {
	return &membershipController{service: service}
}

func (c *membershipController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/membership", auth)
	h.Get("/", c.GetMembership)
	h.Get("/cancellation-preview", c.PreviewCancellation)
	h.Post("/cancel", c.Cancel)
}

func (c *membershipController) GetMembership(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetMembership(ctx.UserContext(), userId)
	if err != nil {
		return membershipError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Membership", res))
}

func (c *membershipController) PreviewCancellation(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.PreviewCancellation(ctx.UserContext(), userId)
	if err != nil {
		return membershipError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Cancellation preview", res))
}

func (c *membershipController) Cancel(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	var req dto.CancelMembershipRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid request body"))
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.service.RequestCancellation(ctx.UserContext(), userId, &req)
	if err != nil {
		return membershipError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse(res.Message, res))
}

func currentUserId(ctx *fiber.Ctx) (uuid.UUID, error) {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "invalid user id in token")
	}
	return userId, nil
}

func membershipError(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrMembershipNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
	case errors.Is(err, service.ErrAlreadyCanceled), errors.Is(err, service.ErrNoSubscription):
		return ctx.Status(fiber.StatusConflict).JSON(serverutils.ErrorResponse(409, err.Error()))
	case errors.Is(err, lock.ErrLockTimeout):
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(serverutils.ErrorResponse(503, "membership is busy, try again"))
	default:
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
}
