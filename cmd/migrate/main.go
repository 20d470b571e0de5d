package main

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		envOr("DB_USER", "user"),
		envOr("DB_PASSWORD", "password"),
		envOr("DB_HOST", "localhost"),
		envOr("DB_PORT", "5432"),
		envOr("DB_NAME", "openclose_ledger"),
		envOr("DB_SSLMODE", "disable"),
	)

	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		log.Fatalln(err)
	}

	dir := envOr("MIGRATIONS_DIR", "migrations")
	files, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("Failed to read migrations directory: %v", err)
	}

	var migrations []string
	for _, f := range files {
		if strings.HasSuffix(f.Name(), ".up.sql") {
			migrations = append(migrations, f.Name())
		}
	}
	sort.Strings(migrations)

	for _, filename := range migrations {
		content, err := os.ReadFile(dir + "/" + filename)
		if err != nil {
			log.Fatalf("Failed to read migration file %s: %v", filename, err)
		}

		// Statements use IF NOT EXISTS so re-runs against an existing
		// database are harmless.
		if _, err := db.Exec(string(content)); err != nil {
			log.Printf("Warning applying %s: %v", filename, err)
		} else {
			fmt.Printf("Applied %s\n", filename)
		}
	}

	fmt.Println("All migrations processed")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
