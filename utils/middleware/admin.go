package middleware

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/lucasferro/license-server/database"
	"github.com/lucasferro/license-server/model"
	"github.com/lucasferro/license-server/utils/auth"
	"github.com/lucasferro/license-server/utils/response"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RequireAdmin validates the bearer token and ensures the admin role
func RequireAdmin(jwtManager *auth.JWTManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return response.Unauthorized(c, "Authentication required")
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			return response.Unauthorized(c, "Invalid authorization header")
		}

		claims, err := jwtManager.ValidateToken(token)
		if err != nil {
			if err == auth.ErrExpiredToken {
				return response.Unauthorized(c, "Token has expired")
			}
			return response.Unauthorized(c, "Invalid token")
		}

		if claims.Role != "admin" || claims.TokenType != "access" {
			return response.Forbidden(c, "Admin access required")
		}

		// Store admin identity in context for audit logging
		c.Locals("adminEmail", claims.Email)

		return c.Next()
	}
}

// AdminAuditLog creates an audit log entry for admin actions
func AdminAuditLog(store database.Storage, action, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		adminEmail, ok := c.Locals("adminEmail").(string)
		if !ok {
			return c.Next() // Continue without logging if identity missing
		}

		db, ok := store.GetDB().(*gorm.DB)
		if !ok {
			return c.Next()
		}

		resourceID := c.Params("id")

		// Capture request body as the "new value" for mutations
		var newValue []byte
		if c.Method() == "POST" || c.Method() == "PUT" || c.Method() == "PATCH" {
			body := c.Body()
			if len(body) > 0 && json.Valid(body) {
				newValue = append([]byte(nil), body...)
			}
		}

		// Capture the existing record before it changes
		var oldValue []byte
		if resourceID != "" && c.Method() != "POST" && c.Method() != "GET" {
			var key model.LicenseKey
			if err := db.Where("id = ?", resourceID).First(&key).Error; err == nil {
				oldValue, _ = json.Marshal(key)
			}
		}

		method := c.Method()
		path := c.Path()
		ip := c.IP()
		userAgent := c.Get("User-Agent")

		err := c.Next()

		auditLog := model.AdminAuditLog{
			AdminEmail:  adminEmail,
			Action:      action,
			Resource:    resource,
			ResourceID:  resourceID,
			OldValue:    datatypes.JSON(oldValue),
			NewValue:    datatypes.JSON(newValue),
			IPAddress:   ip,
			UserAgent:   userAgent,
			Description: method + " " + path,
		}
		// Written before the response returns so shutdown cannot drop the row
		if dbErr := db.Create(&auditLog).Error; dbErr != nil {
			log.Printf("Failed to write audit log for %s %s: %v", method, path, dbErr)
		}

		return err
	}
}
