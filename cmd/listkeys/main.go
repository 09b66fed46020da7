package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/lucasferro/license-server/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	store, err := database.StartGORM()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	keys, err := store.ListKeys(context.Background())
	if err != nil {
		log.Fatalf("Failed to list keys: %v", err)
	}

	if len(keys) == 0 {
		fmt.Println("No license keys found.")
		return
	}

	now := time.Now()
	fmt.Printf("Found %d key(s):\n\n", len(keys))

	for i, key := range keys {
		fmt.Printf("%d. Key: %s\n", i+1, key.Key)
		fmt.Printf("   ID: %s\n", key.ID)
		fmt.Printf("   Status: %s\n", key.Status(now))
		fmt.Printf("   Uses: %d/%d\n", key.UsedCount, key.MaxUses)
		if key.UsedBy != nil {
			fmt.Printf("   Used by: %s\n", *key.UsedBy)
		}
		if key.ExpiresAt != nil {
			fmt.Printf("   Expires: %s\n", key.ExpiresAt.Format(time.RFC3339))
		} else {
			fmt.Printf("   Expires: never\n")
		}
		fmt.Printf("   Created: %s\n\n", key.CreatedAt.Format(time.RFC3339))
	}
}
