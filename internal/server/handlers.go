package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vamo-backend/internal/model"
	"vamo-backend/internal/repository"
	"vamo-backend/internal/service"
)

// ChatRunner runs one chat turn.
type ChatRunner interface {
	Turn(ctx context.Context, req *service.TurnRequest) (*service.TurnResult, error)
}

// Rewarder grants rewards.
type Rewarder interface {
	Award(ctx context.Context, userID, projectID uuid.UUID, eventType, idempotencyKey string) (*service.AwardResult, error)
	AwardAssetLink(ctx context.Context, userID, projectID uuid.UUID, eventType string) (*service.AwardResult, error)
}

// OfferGenerator generates and retrieves valuation offers.
type OfferGenerator interface {
	Generate(ctx context.Context, userID, projectID uuid.UUID) (*model.Offer, error)
	GetActive(ctx context.Context, userID, projectID uuid.UUID) (*model.Offer, error)
}

type handlers struct {
	chat    ChatRunner
	rewards Rewarder
	offers  OfferGenerator
	logger  zerolog.Logger
}

func authedUser(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(userIDKey).(uuid.UUID)
	return id
}

func parseProjectID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "projectId must be a UUID")
	}
	return id, nil
}

// mapServiceError translates service and repository errors to HTTP statuses.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrMessageTooLong),
		errors.Is(err, service.ErrInvalidTag),
		errors.Is(err, service.ErrInvalidEventType):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrProjectNotFound),
		errors.Is(err, service.ErrProfileNotFound),
		errors.Is(err, repository.ErrOfferNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrOfferGeneration):
		return fiber.NewError(fiber.StatusBadGateway, "offer generation failed, try again")
	}
	return err
}

func (h *handlers) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	projectID, err := parseProjectID(req.ProjectID)
	if err != nil {
		return err
	}

	result, err := h.chat.Turn(c.Context(), &service.TurnRequest{
		UserID:    authedUser(c),
		ProjectID: projectID,
		Message:   req.Message,
		Tag:       req.Tag,
	})
	if err != nil {
		return mapServiceError(err)
	}

	resp := &ChatResponse{
		UserMessage:      messageDTO(result.UserMessage),
		AssistantMessage: messageDTO(result.AssistantMessage),
		Intent:           result.Intent,
		Fallback:         result.Fallback,
		BusinessUpdate:   result.BusinessUpdate,
		PineapplesEarned: result.PineapplesEarned,
		NewBalance:       result.NewBalance,
		ProgressScore:    result.ProgressScore,
	}
	if sig := result.TractionSignal; sig != nil {
		resp.TractionSignal = &TractionSignalDTO{
			ID:          sig.ID.String(),
			SignalType:  sig.SignalType,
			Description: sig.Description,
			CreatedAt:   sig.CreatedAt,
		}
	}
	return c.JSON(resp)
}

func (h *handlers) handleReward(c *fiber.Ctx) error {
	var req RewardRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	userID := authedUser(c)
	if req.UserID != "" && req.UserID != userID.String() {
		return fiber.NewError(fiber.StatusForbidden, "userId does not match the authenticated user")
	}

	projectID, err := parseProjectID(req.ProjectID)
	if err != nil {
		return err
	}

	var result *service.AwardResult
	switch req.EventType {
	case model.EventLinkLinkedIn, model.EventLinkGitHub, model.EventLinkWebsite:
		result, err = h.rewards.AwardAssetLink(c.Context(), userID, projectID, req.EventType)
	default:
		if req.IdempotencyKey == "" {
			return fiber.NewError(fiber.StatusBadRequest, "idempotencyKey is required")
		}
		result, err = h.rewards.Award(c.Context(), userID, projectID, req.EventType, req.IdempotencyKey)
	}
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(&RewardResponse{
		Rewarded:      result.Rewarded,
		Duplicate:     result.Duplicate,
		Amount:        result.Amount,
		NewBalance:    result.NewBalance,
		LedgerEntryID: result.LedgerEntryID.String(),
	})
}

func (h *handlers) handleGenerateOffer(c *fiber.Ctx) error {
	var req OfferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	projectID, err := parseProjectID(req.ProjectID)
	if err != nil {
		return err
	}

	offer, err := h.offers.Generate(c.Context(), authedUser(c), projectID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(offerResponse(offer))
}

func (h *handlers) handleGetOffer(c *fiber.Ctx) error {
	projectID, err := parseProjectID(c.Params("projectId"))
	if err != nil {
		return err
	}

	offer, err := h.offers.GetActive(c.Context(), authedUser(c), projectID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(offerResponse(offer))
}
