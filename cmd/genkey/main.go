package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/lucasferro/license-server/database"
	"github.com/lucasferro/license-server/model"
	"github.com/lucasferro/license-server/services"
)

func main() {
	count := flag.Int("count", 1, "number of keys to generate")
	userID := flag.String("user", "", "associated user ID (optional)")
	expiresInDays := flag.Int("expires", 0, "days until expiry (0 = never expires)")
	maxUses := flag.Int("max-uses", 1, "maximum validations per key")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	store, err := database.StartGORM()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	issuer := services.NewKeyIssuer(store)
	ctx := context.Background()

	fmt.Printf("Generating %d license key(s)...\n\n", *count)

	created := 0
	for i := 0; i < *count; i++ {
		key, err := issuer.IssueUnique(ctx, services.DefaultKeyLength, services.DefaultMaxAttempts)
		if err != nil {
			log.Printf("❌ Failed to generate key %d/%d: %v", i+1, *count, err)
			continue
		}

		record := &model.LicenseKey{
			Key:     key,
			IsValid: true,
			MaxUses: *maxUses,
		}
		if *userID != "" {
			record.UserID = userID
		}
		if *expiresInDays > 0 {
			expiresAt := time.Now().Add(time.Duration(*expiresInDays) * 24 * time.Hour)
			record.ExpiresAt = &expiresAt
		}

		inserted, err := store.InsertKey(ctx, record)
		if err != nil {
			log.Printf("❌ Failed to store key %d/%d: %v", i+1, *count, err)
			continue
		}

		created++
		fmt.Printf("✅ Key %d/%d created:\n", i+1, *count)
		fmt.Printf("   Key: %s\n", inserted.Key)
		fmt.Printf("   ID: %s\n", inserted.ID)
		fmt.Printf("   Max uses: %d\n", inserted.MaxUses)
		if inserted.ExpiresAt != nil {
			fmt.Printf("   Expires: %s\n", inserted.ExpiresAt.Format("2006-01-02"))
		} else {
			fmt.Printf("   Expires: never\n")
		}
		fmt.Println()
	}

	fmt.Printf("Done: %d/%d key(s) created.\n", created, *count)
}
