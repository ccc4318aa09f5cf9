package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"insurance-ledger/internal/database/minio"
	"insurance-ledger/pkg/apiresponse"

	"github.com/gofiber/fiber/v3"
)

const evidenceURLExpiry = 15 * time.Minute

// EvidenceHandler fronts the evidence document collaborator. Documents are
// content-addressed in MinIO; the returned reference is what callers pass to
// fileClaim, and the engine never interprets it.
type EvidenceHandler struct {
	minioClient *minio.MinioClient
}

func NewEvidenceHandler(minioClient *minio.MinioClient) *EvidenceHandler {
	return &EvidenceHandler{minioClient: minioClient}
}

func (h *EvidenceHandler) Register(app *fiber.App) {
	group := app.Group("insurance/api/v1")

	evidenceGroup := group.Group("/evidence")
	evidenceGroup.Post("/", h.UploadEvidence)   // POST /evidence
	evidenceGroup.Get("/:ref", h.GetEvidenceURL) // GET  /evidence/:ref
}

// UploadEvidence stores the request body as an evidence document and returns
// its content-addressed reference, 0x-prefixed like the references clients
// already submit.
func (h *EvidenceHandler) UploadEvidence(c fiber.Ctx) error {
	data := c.Body()
	if len(data) == 0 {
		return c.Status(http.StatusBadRequest).JSON(
			apiresponse.CreateErrorResponse("INVALID_BODY", "Evidence document is empty"))
	}

	digest := sha256.Sum256(data)
	objectName := hex.EncodeToString(digest[:])

	contentType := c.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.minioClient.UploadBytes(c.Context(), minio.Storage.ClaimEvidence, objectName, data, contentType); err != nil {
		return respondError(c, err, "upload evidence")
	}

	return c.Status(http.StatusCreated).JSON(apiresponse.CreateSuccessResponse(map[string]any{
		"reference": "0x" + objectName,
		"size":      len(data),
	}))
}

// GetEvidenceURL returns a short-lived presigned URL for an evidence
// document. Accepts the reference with or without its 0x prefix.
func (h *EvidenceHandler) GetEvidenceURL(c fiber.Ctx) error {
	ref := strings.TrimPrefix(c.Params("ref"), "0x")
	if ref == "" {
		return c.Status(http.StatusBadRequest).JSON(
			apiresponse.CreateErrorResponse("INVALID_ID", "Evidence reference is required"))
	}

	exists, err := h.minioClient.FileExists(c.Context(), minio.Storage.ClaimEvidence, ref)
	if err != nil {
		return respondError(c, err, "check evidence")
	}
	if !exists {
		return c.Status(http.StatusNotFound).JSON(
			apiresponse.CreateErrorResponse("NOT_FOUND", "Evidence document not found"))
	}

	url, err := h.minioClient.GetPresignedURL(c.Context(), minio.Storage.ClaimEvidence, ref, evidenceURLExpiry)
	if err != nil {
		return respondError(c, err, "presign evidence")
	}

	return c.Status(http.StatusOK).JSON(apiresponse.CreateSuccessResponse(map[string]any{
		"reference": "0x" + ref,
		"url":       url,
	}))
}
