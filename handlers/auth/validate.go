package auth

import (
	"bufio"
	"context"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/lucasferro/license-server/services"
	"github.com/lucasferro/license-server/utils/middleware"
	"github.com/lucasferro/license-server/utils/response"
	"github.com/lucasferro/license-server/utils/sse"
	"github.com/lucasferro/license-server/utils/validation"
)

// ValidateHandler handles license key validation requests
type ValidateHandler struct {
	licenseService *services.LicenseService
	bruteForce     *middleware.BruteForceProtection
	validator      *validation.Validator
}

// NewValidateHandler creates a new validation handler
func NewValidateHandler(licenseService *services.LicenseService, bruteForce *middleware.BruteForceProtection) *ValidateHandler {
	return &ValidateHandler{
		licenseService: licenseService,
		bruteForce:     bruteForce,
		validator:      validation.NewValidator(),
	}
}

type validateRequest struct {
	Key string `json:"key" validate:"required,min=1,max=128"`
}

type validateResponse struct {
	Valid      bool   `json:"valid"`
	ConsumerID string `json:"consumerId,omitempty"`
	Message    string `json:"message"`
}

// ValidateKey handles POST /api/v1/auth/validate
// With ?stream=true the response upgrades to SSE and relays progress events.
func (h *ValidateHandler) ValidateKey(c *fiber.Ctx) error {
	var req validateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if c.Query("stream", "false") == "true" {
		return h.validateKeyStream(c, req.Key)
	}

	result, err := h.licenseService.Validate(c.Context(), req.Key, nil)
	if err != nil {
		return h.rejectOrFail(c, req.Key, err)
	}

	h.bruteForce.RecordSuccessfulAttempt(c.Context(), c.IP())
	log.Printf("key validated: %s consumer=%s", maskKey(result.Key.Key), result.ConsumerID)

	return c.Status(fiber.StatusOK).JSON(validateResponse{
		Valid:      true,
		ConsumerID: result.ConsumerID,
		Message:    "License key is valid",
	})
}

// validateKeyStream runs the validation inside an SSE body stream, relaying
// each progress event as it happens.
func (h *ValidateHandler) validateKeyStream(c *fiber.Ctx, rawKey string) error {
	ip := c.IP()

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // Disable nginx buffering

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		// The Fiber context is not valid inside the stream goroutine
		ctx := context.Background()
		recordFailure := func() {
			h.bruteForce.RecordFailedAttempt(ctx, ip)
		}
		recordSuccess := func() {
			h.bruteForce.RecordSuccessfulAttempt(ctx, ip)
		}

		result, err := h.licenseService.Validate(ctx, rawKey, func(event services.ProgressEvent) error {
			if event.Type == "error" || event.Type == "complete" {
				// Terminal events are sent below with the full payload
				return nil
			}
			return sse.SendProgress(w, event)
		})

		if err != nil {
			if vErr, ok := services.AsValidationError(err); ok {
				if vErr.Kind != services.KindFormatInvalid {
					recordFailure()
				}
				sse.SendError(w, string(vErr.Kind), vErr.Message)
				return
			}
			log.Printf("key validation failed: %v", err)
			sse.SendError(w, "INTERNAL_ERROR", "Validation failed due to a server error")
			return
		}

		recordSuccess()
		log.Printf("key validated: %s consumer=%s", maskKey(result.Key.Key), result.ConsumerID)
		sse.SendComplete(w, validateResponse{
			Valid:      true,
			ConsumerID: result.ConsumerID,
			Message:    "License key is valid",
		})
	})

	return nil
}

// rejectOrFail maps a validation error onto the HTTP envelope. Malformed
// input is a 400; every lifecycle rejection answers 401 so clients cannot
// distinguish probing from a real key's state without holding the key.
func (h *ValidateHandler) rejectOrFail(c *fiber.Ctx, rawKey string, err error) error {
	vErr, ok := services.AsValidationError(err)
	if !ok {
		log.Printf("key validation failed: %v", err)
		return response.InternalServerError(c, "Validation failed due to a server error")
	}

	if vErr.Kind == services.KindFormatInvalid {
		return response.Error(c, fiber.StatusBadRequest, vErr.Message, string(vErr.Kind))
	}

	h.bruteForce.RecordFailedAttempt(c.Context(), c.IP())
	log.Printf("key rejected: %s kind=%s", maskKey(rawKey), vErr.Kind)
	return response.Error(c, fiber.StatusUnauthorized, vErr.Message, string(vErr.Kind))
}

// maskKey obscures all but the first and last blocks for log output
func maskKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return strings.Repeat("*", len(key))
	}
	return key[:visible] + strings.Repeat("*", len(key)-visible*2) + key[len(key)-visible:]
}
