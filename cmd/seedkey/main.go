package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/lucasferro/license-server/database"
	"github.com/lucasferro/license-server/model"
	"github.com/lucasferro/license-server/utils/keyformat"
)

// exampleKey is a fixed key for local testing. Keys are stored in canonical
// display form, so the raw value is formatted before it touches the database.
const exampleKey = "TEST-KEY-123456"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	store, err := database.StartGORM()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx := context.Background()
	seedKey := keyformat.Format(exampleKey)
	fmt.Println("Seeding example license key...")

	existing, err := store.FindKeyByValue(ctx, seedKey)
	if err == nil {
		fmt.Println("✅ Key already exists")
		fmt.Printf("   ID: %s\n", existing.ID)
		fmt.Printf("   Valid: %t\n", existing.IsValid)
		fmt.Printf("   Created: %s\n", existing.CreatedAt)
		return
	}
	if !errors.Is(err, database.ErrNotFound) {
		log.Fatalf("Failed to check for existing key: %v", err)
	}

	userID := "user-example-123"
	key, err := store.InsertKey(ctx, &model.LicenseKey{
		Key:     seedKey,
		IsValid: true,
		UserID:  &userID,
		MaxUses: 1,
	})
	if err != nil {
		log.Fatalf("Failed to create key: %v", err)
	}

	fmt.Println("✅ Example key created!")
	fmt.Printf("   ID: %s\n", key.ID)
	fmt.Printf("   Key: %s\n", key.Key)
	fmt.Println()
	fmt.Println("🔑 Use this key for testing:")
	fmt.Printf("   %s\n", exampleKey)
}
