package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"insurance-ledger/internal/models"
	"insurance-ledger/pkg/apiresponse"

	"github.com/gofiber/fiber/v3"
)

// domainStatus maps a domain error to its HTTP status and stable error code.
func domainStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", true
	case errors.Is(err, models.ErrInvalidParameters):
		return http.StatusBadRequest, "INVALID_PARAMETERS", true
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusForbidden, "UNAUTHORIZED", true
	case errors.Is(err, models.ErrAlreadyPurchased):
		return http.StatusConflict, "ALREADY_PURCHASED", true
	case errors.Is(err, models.ErrPremiumMismatch):
		return http.StatusBadRequest, "PREMIUM_MISMATCH", true
	case errors.Is(err, models.ErrPolicyInactive):
		return http.StatusConflict, "POLICY_INACTIVE", true
	case errors.Is(err, models.ErrAlreadyAdjudicated):
		return http.StatusConflict, "ALREADY_ADJUDICATED", true
	case errors.Is(err, models.ErrNotVerified):
		return http.StatusConflict, "NOT_VERIFIED", true
	case errors.Is(err, models.ErrAlreadyPaid):
		return http.StatusConflict, "ALREADY_PAID", true
	case errors.Is(err, models.ErrInsufficientEscrow):
		return http.StatusConflict, "INSUFFICIENT_ESCROW", true
	}
	return 0, "", false
}

// respondError writes the JSON error envelope for err. Domain errors keep
// their taxonomy code; anything else is an internal failure and gets logged.
func respondError(c fiber.Ctx, err error, operation string) error {
	if status, code, ok := domainStatus(err); ok {
		return c.Status(status).JSON(apiresponse.CreateErrorResponse(code, err.Error()))
	}
	slog.Error("operation failed", "operation", operation, "error", err)
	return c.Status(http.StatusInternalServerError).JSON(
		apiresponse.CreateErrorResponse("INTERNAL_ERROR", "operation failed"))
}

// callerID extracts the authenticated caller identity set by the gateway.
func callerID(c fiber.Ctx) string {
	return c.Get("X-User-ID")
}
