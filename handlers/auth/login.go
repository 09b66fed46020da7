package auth

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/lucasferro/license-server/utils/auth"
	"github.com/lucasferro/license-server/utils/middleware"
	"github.com/lucasferro/license-server/utils/response"
	"github.com/lucasferro/license-server/utils/validation"
)

// AdminCredentials holds the single admin account loaded from the
// environment. PasswordHash is a bcrypt hash.
type AdminCredentials struct {
	Email        string
	PasswordHash string
}

// LoginHandler handles admin authentication
type LoginHandler struct {
	credentials AdminCredentials
	jwtManager  *auth.JWTManager
	bruteForce  *middleware.BruteForceProtection
	validator   *validation.Validator
}

// NewLoginHandler creates a new admin login handler
func NewLoginHandler(credentials AdminCredentials, jwtManager *auth.JWTManager, bruteForce *middleware.BruteForceProtection) *LoginHandler {
	return &LoginHandler{
		credentials: credentials,
		jwtManager:  jwtManager,
		bruteForce:  bruteForce,
		validator:   validation.NewValidator(),
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Login handles POST /api/v1/admin/login
func (h *LoginHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if h.credentials.Email == "" || h.credentials.PasswordHash == "" {
		log.Printf("admin login rejected: no admin credentials configured")
		return response.Unauthorized(c, "Invalid credentials")
	}

	if req.Email != h.credentials.Email {
		h.bruteForce.RecordFailedAttempt(c.Context(), c.IP())
		return response.Unauthorized(c, "Invalid credentials")
	}

	if err := auth.VerifyPassword(h.credentials.PasswordHash, req.Password); err != nil {
		h.bruteForce.RecordFailedAttempt(c.Context(), c.IP())
		return response.Unauthorized(c, "Invalid credentials")
	}

	token, err := h.jwtManager.GenerateAdminToken(req.Email)
	if err != nil {
		log.Printf("failed to sign admin token: %v", err)
		return response.InternalServerError(c, "Failed to create session")
	}

	h.bruteForce.RecordSuccessfulAttempt(c.Context(), c.IP())

	return response.Success(c, fiber.Map{
		"token": token,
		"email": req.Email,
		"role":  "admin",
	})
}
