package admin

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lucasferro/license-server/services"
	"github.com/lucasferro/license-server/utils/response"
	"github.com/lucasferro/license-server/utils/validation"
)

// KeysHandler handles administrative license key management
type KeysHandler struct {
	adminService *services.KeyAdminService
	validator    *validation.Validator
}

// NewKeysHandler creates a new admin keys handler
func NewKeysHandler(adminService *services.KeyAdminService) *KeysHandler {
	return &KeysHandler{
		adminService: adminService,
		validator:    validation.NewValidator(),
	}
}

type createKeyRequest struct {
	Key       string     `json:"key" validate:"omitempty,min=12,max=128"`
	IsValid   *bool      `json:"isValid"`
	UserID    *string    `json:"userId" validate:"omitempty,max=100"`
	ExpiresAt *time.Time `json:"expiresAt"`
	MaxUses   int        `json:"maxUses" validate:"omitempty,gte=1,lte=1000"`
}

// CreateKey handles POST /api/v1/admin/keys
// An omitted key value is generated server-side.
func (h *KeysHandler) CreateKey(c *fiber.Ctx) error {
	var req createKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	key, err := h.adminService.CreateKey(c.Context(), services.CreateKeyInput{
		Key:       req.Key,
		IsValid:   req.IsValid,
		UserID:    req.UserID,
		ExpiresAt: req.ExpiresAt,
		MaxUses:   req.MaxUses,
	})
	if err != nil {
		return h.mapServiceError(c, err)
	}

	return response.Created(c, key)
}

// ListKeys handles GET /api/v1/admin/keys
func (h *KeysHandler) ListKeys(c *fiber.Ctx) error {
	keys, err := h.adminService.ListKeys(c.Context())
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return response.Success(c, keys)
}

// GetKey handles GET /api/v1/admin/keys/:id
func (h *KeysHandler) GetKey(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.BadRequest(c, "Key ID is required")
	}

	key, err := h.adminService.GetKey(c.Context(), id)
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return response.Success(c, key)
}

type updateKeyRequest struct {
	Key       *string    `json:"key" validate:"omitempty,min=12,max=128"`
	IsValid   *bool      `json:"isValid"`
	UserID    *string    `json:"userId" validate:"omitempty,max=100"`
	ExpiresAt *time.Time `json:"expiresAt"`
	MaxUses   *int       `json:"maxUses" validate:"omitempty,gte=1,lte=1000"`
	UsedCount *int       `json:"usedCount" validate:"omitempty,gte=0"`
	UsedBy    *string    `json:"usedBy" validate:"omitempty,max=100"`
}

// UpdateKey handles PUT /api/v1/admin/keys/:id
// Omitted fields are left untouched; an explicit null on expiresAt or
// usedBy clears the column.
func (h *KeysHandler) UpdateKey(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.BadRequest(c, "Key ID is required")
	}

	var req updateKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	// Distinguish "field absent" from "field: null" for the nullable
	// columns by probing the raw body.
	hasExpiresAt := bodyHasField(c.Body(), "expiresAt")
	hasUsedBy := bodyHasField(c.Body(), "usedBy")

	key, err := h.adminService.UpdateKey(c.Context(), id, services.UpdateKeyInput{
		Key:          req.Key,
		IsValid:      req.IsValid,
		UserID:       req.UserID,
		ExpiresAt:    req.ExpiresAt,
		SetExpiresAt: hasExpiresAt,
		MaxUses:      req.MaxUses,
		UsedCount:    req.UsedCount,
		UsedBy:       req.UsedBy,
		SetUsedBy:    hasUsedBy,
	})
	if err != nil {
		return h.mapServiceError(c, err)
	}

	return response.Success(c, key)
}

// DeleteKey handles DELETE /api/v1/admin/keys/:id
func (h *KeysHandler) DeleteKey(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.BadRequest(c, "Key ID is required")
	}

	if err := h.adminService.DeleteKey(c.Context(), id); err != nil {
		return h.mapServiceError(c, err)
	}

	return response.SuccessWithMessage(c, "License key deleted", nil)
}

// ResetKeyUsage handles POST /api/v1/admin/keys/:id/reset
func (h *KeysHandler) ResetKeyUsage(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.BadRequest(c, "Key ID is required")
	}

	key, err := h.adminService.ResetKeyUsage(c.Context(), id)
	if err != nil {
		return h.mapServiceError(c, err)
	}

	return response.SuccessWithMessage(c, "License key usage reset", key)
}

// bodyHasField reports whether the JSON body contains the given top-level
// field, even when its value is null
func bodyHasField(body []byte, field string) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	_, ok := probe[field]
	return ok
}

// mapServiceError converts service errors into HTTP responses
func (h *KeysHandler) mapServiceError(c *fiber.Ctx, err error) error {
	vErr, ok := services.AsValidationError(err)
	if !ok {
		log.Printf("admin key operation failed: %v", err)
		return response.InternalServerError(c, "")
	}

	switch vErr.Kind {
	case services.KindNotFound:
		return response.NotFound(c, vErr.Message)
	case services.KindDuplicateKey, services.KindIssuanceExhausted:
		return response.Error(c, fiber.StatusConflict, vErr.Message, string(vErr.Kind))
	default:
		return response.Error(c, fiber.StatusBadRequest, vErr.Message, string(vErr.Kind))
	}
}
