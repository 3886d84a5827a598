package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/technosupport/kindyguard/internal/auth"
)

// Seeds (or resets) the admin account. Intended for first-time install and
// for recovering a locked-out site.
func main() {
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		dbUser = "postgres"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "kindyguard"
	}

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("ADMIN_PASSWORD is required")
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:5432/%s?sslmode=disable", dbUser, dbPass, dbHost, dbName)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Hashing failed: %v", err)
	}

	// Upsert by username so re-running rotates the password instead of failing.
	_, err = db.Exec(`
		INSERT INTO users (id, username, display_name, role, password_hash, is_disabled, created_at, updated_at)
		VALUES ($1, $2, 'Site Administrator', 'admin', $3, false, NOW(), NOW())
		ON CONFLICT (username) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			is_disabled = false,
			updated_at = NOW()`, uuid.NewString(), username, hash)
	if err != nil {
		log.Fatalf("Admin Upsert Failed: %v", err)
	}

	fmt.Printf("SUCCESS: admin user %q seeded.\n", username)
}
