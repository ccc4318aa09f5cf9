package handlers

import (
	"context"
	"net/http"

	"insurance-ledger/internal/models"
	"insurance-ledger/internal/services"
	"insurance-ledger/pkg/apiresponse"

	"github.com/gofiber/fiber/v3"
)

type ClaimHandler struct {
	claimService *services.ClaimService
}

func NewClaimHandler(claimService *services.ClaimService) *ClaimHandler {
	return &ClaimHandler{claimService: claimService}
}

func (h *ClaimHandler) Register(app *fiber.App) {
	group := app.Group("insurance/api/v1")

	claimGroup := group.Group("/claims")
	claimGroup.Post("/", h.FileClaim)                  // POST /claims
	claimGroup.Get("/count", h.GetClaimCount)          // GET  /claims/count
	claimGroup.Get("/:id", h.GetClaimStatus)           // GET  /claims/:id
	claimGroup.Get("/:id/evidence", h.GetClaimEvidence) // GET  /claims/:id/evidence
	claimGroup.Post("/:id/verify", h.VerifyClaim)      // POST /claims/:id/verify
	claimGroup.Post("/:id/reject", h.RejectClaim)      // POST /claims/:id/reject
	claimGroup.Post("/:id/payout", h.PayoutClaim)      // POST /claims/:id/payout
}

// FileClaim creates a claim against a policy the caller holds.
func (h *ClaimHandler) FileClaim(c fiber.Ctx) error {
	caller := callerID(c)
	if caller == "" {
		return c.Status(http.StatusUnauthorized).JSON(
			apiresponse.CreateErrorResponse("UNAUTHORIZED", "User ID is required"))
	}

	var req models.FileClaimRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			apiresponse.CreateErrorResponse("INVALID_BODY", "Invalid request body"))
	}
	if req.Evidence == "" {
		return c.Status(http.StatusBadRequest).JSON(
			apiresponse.CreateErrorResponse("INVALID_PARAMETERS", "Evidence reference is required"))
	}

	claim, err := h.claimService.FileClaim(c.Context(), caller, req.PolicyID, req.Evidence)
	if err != nil {
		return respondError(c, err, "file claim")
	}

	return c.Status(http.StatusCreated).JSON(apiresponse.CreateSuccessResponse(claim))
}

// GetClaimStatus returns a read-only claim snapshot.
func (h *ClaimHandler) GetClaimStatus(c fiber.Ctx) error {
	claimID, err := parseID(c, "id")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			apiresponse.CreateErrorResponse("INVALID_ID", "Invalid claim ID format"))
	}

	claim, err := h.claimService.GetClaimStatus(c.Context(), claimID)
	if err != nil {
		return respondError(c, err, "get claim status")
	}

	return c.Status(http.StatusOK).JSON(apiresponse.CreateSuccessResponse(claim))
}

// GetClaimEvidence returns the stored evidence reference for a claim.
func (h *ClaimHandler) GetClaimEvidence(c fiber.Ctx) error {
	claimID, err := parseID(c, "id")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			apiresponse.CreateErrorResponse("INVALID_ID", "Invalid claim ID format"))
	}

	evidence, err := h.claimService.GetClaimEvidence(c.Context(), claimID)
	if err != nil {
		return respondError(c, err, "get claim evidence")
	}

	return c.Status(http.StatusOK).JSON(apiresponse.CreateSuccessResponse(map[string]any{
		"claim_id": claimID,
		"evidence": evidence,
	}))
}

// VerifyClaim marks a claim verified; adjudicator-only.
func (h *ClaimHandler) VerifyClaim(c fiber.Ctx) error {
	return h.adjudicate(c, h.claimService.VerifyClaim, "verify claim")
}

// RejectClaim marks a claim rejected; adjudicator-only.
func (h *ClaimHandler) RejectClaim(c fiber.Ctx) error {
	return h.adjudicate(c, h.claimService.RejectClaim, "reject claim")
}

func (h *ClaimHandler) adjudicate(c fiber.Ctx, decide func(ctx context.Context, caller string, claimID int64) error, operation string) error {
	caller := callerID(c)
	if caller == "" {
		return c.Status(http.StatusUnauthorized).JSON(
			apiresponse.CreateErrorResponse("UNAUTHORIZED", "User ID is required"))
	}

	claimID, err := parseID(c, "id")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			apiresponse.CreateErrorResponse("INVALID_ID", "Invalid claim ID format"))
	}

	if err := decide(c.Context(), caller, claimID); err != nil {
		return respondError(c, err, operation)
	}

	return c.Status(http.StatusOK).JSON(apiresponse.CreateSuccessResponse(map[string]any{
		"claim_id": claimID,
	}))
}

// PayoutClaim settles a verified claim from the policy's escrow.
func (h *ClaimHandler) PayoutClaim(c fiber.Ctx) error {
	claimID, err := parseID(c, "id")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			apiresponse.CreateErrorResponse("INVALID_ID", "Invalid claim ID format"))
	}

	if err := h.claimService.PayoutClaim(c.Context(), claimID); err != nil {
		return respondError(c, err, "payout claim")
	}

	return c.Status(http.StatusOK).JSON(apiresponse.CreateSuccessResponse(map[string]any{
		"claim_id": claimID,
		"paid":     true,
	}))
}

// GetClaimCount returns the number of claims ever filed.
func (h *ClaimHandler) GetClaimCount(c fiber.Ctx) error {
	count, err := h.claimService.ClaimCount(c.Context())
	if err != nil {
		return respondError(c, err, "get claim count")
	}

	return c.Status(http.StatusOK).JSON(apiresponse.CreateSuccessResponse(map[string]any{
		"count": count,
	}))
}
