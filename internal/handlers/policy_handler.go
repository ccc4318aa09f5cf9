package handlers

import (
	"net/http"
	"strconv"

	"insurance-ledger/internal/models"
	"insurance-ledger/internal/services"
	"insurance-ledger/pkg/apiresponse"

	"github.com/gofiber/fiber/v3"
)

type PolicyHandler struct {
	policyService *services.PolicyService
}

func NewPolicyHandler(policyService *services.PolicyService) *PolicyHandler {
	return &PolicyHandler{policyService: policyService}
}

func (h *PolicyHandler) Register(app *fiber.App) {
	group := app.Group("insurance/api/v1")

	policyGroup := group.Group("/policies")
	policyGroup.Post("/", h.CreatePolicy)          // POST   /policies
	policyGroup.Get("/count", h.GetPolicyCount)    // GET    /policies/count
	policyGroup.Get("/:id", h.GetPolicyDetails)    // GET    /policies/:id
	policyGroup.Post("/:id/purchase", h.Purchase)  // POST   /policies/:id/purchase
	policyGroup.Get("/:id/escrow", h.GetEscrow)    // GET    /policies/:id/escrow
}

// CreatePolicy registers a new policy; the caller becomes its insurer.
func (h *PolicyHandler) CreatePolicy(c fiber.Ctx) error {
	caller := callerID(c)
	if caller == "" {
		return c.Status(http.StatusUnauthorized).JSON(
			apiresponse.CreateErrorResponse("UNAUTHORIZED", "User ID is required"))
	}

	var req models.CreatePolicyRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			apiresponse.CreateErrorResponse("INVALID_BODY", "Invalid request body"))
	}

	policy, err := h.policyService.CreatePolicy(c.Context(), caller, req)
	if err != nil {
		return respondError(c, err, "create policy")
	}

	return c.Status(http.StatusCreated).JSON(apiresponse.CreateSuccessResponse(policy))
}

// GetPolicyDetails returns a read-only policy snapshot.
func (h *PolicyHandler) GetPolicyDetails(c fiber.Ctx) error {
	policyID, err := parseID(c, "id")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			apiresponse.CreateErrorResponse("INVALID_ID", "Invalid policy ID format"))
	}

	policy, err := h.policyService.GetPolicyDetails(c.Context(), policyID)
	if err != nil {
		return respondError(c, err, "get policy details")
	}

	return c.Status(http.StatusOK).JSON(apiresponse.CreateSuccessResponse(policy))
}

// Purchase buys the policy for the caller at the exact premium amount.
func (h *PolicyHandler) Purchase(c fiber.Ctx) error {
	caller := callerID(c)
	if caller == "" {
		return c.Status(http.StatusUnauthorized).JSON(
			apiresponse.CreateErrorResponse("UNAUTHORIZED", "User ID is required"))
	}

	policyID, err := parseID(c, "id")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			apiresponse.CreateErrorResponse("INVALID_ID", "Invalid policy ID format"))
	}

	var req models.PurchasePolicyRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			apiresponse.CreateErrorResponse("INVALID_BODY", "Invalid request body"))
	}

	if err := h.policyService.PurchasePolicy(c.Context(), caller, policyID, req.PaidAmount); err != nil {
		return respondError(c, err, "purchase policy")
	}

	return c.Status(http.StatusOK).JSON(apiresponse.CreateSuccessResponse(map[string]any{
		"policy_id":    policyID,
		"policyholder": caller,
	}))
}

// GetEscrow returns the remaining escrow balance for a policy.
func (h *PolicyHandler) GetEscrow(c fiber.Ctx) error {
	policyID, err := parseID(c, "id")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			apiresponse.CreateErrorResponse("INVALID_ID", "Invalid policy ID format"))
	}

	balance, err := h.policyService.EscrowBalance(c.Context(), policyID)
	if err != nil {
		return respondError(c, err, "get escrow balance")
	}

	return c.Status(http.StatusOK).JSON(apiresponse.CreateSuccessResponse(map[string]any{
		"policy_id": policyID,
		"balance":   balance,
	}))
}

// GetPolicyCount returns the number of policies ever created.
func (h *PolicyHandler) GetPolicyCount(c fiber.Ctx) error {
	count, err := h.policyService.PolicyCount(c.Context())
	if err != nil {
		return respondError(c, err, "get policy count")
	}

	return c.Status(http.StatusOK).JSON(apiresponse.CreateSuccessResponse(map[string]any{
		"count": count,
	}))
}

func parseID(c fiber.Ctx, param string) (int64, error) {
	return strconv.ParseInt(c.Params(param), 10, 64)
}
