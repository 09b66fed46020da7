package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lucasferro/license-server/config"
	"github.com/lucasferro/license-server/database"
	"github.com/lucasferro/license-server/handlers"
	admin_handlers "github.com/lucasferro/license-server/handlers/admin"
	auth_handlers "github.com/lucasferro/license-server/handlers/auth"
	"github.com/lucasferro/license-server/services"
	"github.com/lucasferro/license-server/utils"
	"github.com/lucasferro/license-server/utils/auth"
	"github.com/lucasferro/license-server/utils/cache"
	"github.com/lucasferro/license-server/utils/middleware"
)

func SetupRoutes(app *fiber.App, store database.Storage, env *config.EnviornmentVariable) {
	if env.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := env.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "license-server"
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: env.JWT_SECRET,
		Expiry: 24 * time.Hour,
		Issuer: jwtIssuer,
	})

	// Redis backs brute force protection on the public endpoints
	redisURL := env.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	var bruteForceProtection *middleware.BruteForceProtection
	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Brute force protection will be disabled.", err)
	} else {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	// Services
	keyStore, ok := store.(services.KeyStore)
	if !ok {
		log.Fatal("storage backend does not support license key validation")
	}
	adminStore, ok := store.(services.AdminStore)
	if !ok {
		log.Fatal("storage backend does not support license key administration")
	}
	licenseService := services.NewLicenseService(keyStore, services.LicenseServiceConfig{
		PhaseDelay:   time.Duration(env.VALIDATE_PHASE_DELAY_MS) * time.Millisecond,
		ScanFallback: env.KEY_SCAN_FALLBACK,
	})
	adminService := services.NewKeyAdminService(adminStore)

	// Admin credential: prefer a precomputed bcrypt hash, fall back to
	// hashing a plain password at startup.
	credentials := auth_handlers.AdminCredentials{
		Email:        env.ADMIN_EMAIL,
		PasswordHash: env.ADMIN_PASSWORD_HASH,
	}
	if credentials.PasswordHash == "" && env.ADMIN_PASSWORD != "" {
		hash, err := auth.HashPassword(env.ADMIN_PASSWORD)
		if err != nil {
			log.Printf("Warning: ADMIN_PASSWORD could not be hashed: %v. Admin login disabled.", err)
		} else {
			credentials.PasswordHash = hash
		}
	}

	// Handlers
	validateHandler := auth_handlers.NewValidateHandler(licenseService, bruteForceProtection)
	loginHandler := auth_handlers.NewLoginHandler(credentials, jwtManager, bruteForceProtection)
	keysHandler := admin_handlers.NewKeysHandler(adminService)

	// Security middleware
	allowedOrigins := env.ALLOWED_ORIGINS
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:5173"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/ping", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, store))

	// API v1 group
	api := app.Group("/api/v1")

	// Public validation endpoint with brute force protection
	authGroup := api.Group("/auth")
	if bruteForceProtection != nil {
		authGroup.Post("/validate", bruteForceProtection.CheckAttempt(), validateHandler.ValidateKey)
	} else {
		authGroup.Post("/validate", validateHandler.ValidateKey)
	}

	// Admin login
	adminGroup := api.Group("/admin")
	if bruteForceProtection != nil {
		adminGroup.Post("/login", bruteForceProtection.CheckAttempt(), loginHandler.Login)
	} else {
		adminGroup.Post("/login", loginHandler.Login)
	}

	// Admin key management (JWT required, mutations audited)
	keys := adminGroup.Group("/keys", middleware.RequireAdmin(jwtManager))
	keys.Get("/", keysHandler.ListKeys)
	keys.Post("/", middleware.AdminAuditLog(store, "key_create", "license_keys"), keysHandler.CreateKey)
	keys.Get("/:id", keysHandler.GetKey)
	keys.Put("/:id", middleware.AdminAuditLog(store, "key_update", "license_keys"), keysHandler.UpdateKey)
	keys.Delete("/:id", middleware.AdminAuditLog(store, "key_delete", "license_keys"), keysHandler.DeleteKey)
	keys.Post("/:id/reset", middleware.AdminAuditLog(store, "key_reset", "license_keys"), keysHandler.ResetKeyUsage)
}
