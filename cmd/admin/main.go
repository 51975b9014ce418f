package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"mytodo/internal/domain/user"
	"mytodo/internal/infrastructure/postgres"
	"mytodo/internal/shared/auth"
	"mytodo/internal/shared/config"
)

const usage = `My Todo Admin CLI - Management commands for the todo API

Usage:
  admin <command> [options]

Commands:
  migrate       Apply the database schema and change-feed triggers
  create-user   Create a user account

Examples:
  # Apply schema and triggers
  admin migrate

  # Apply with a custom timeout
  admin migrate --timeout=5m

  # Create a user
  admin create-user --email=ana@example.com --name="Ana" --password=secret
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage, "\n")
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "migrate":
		runMigrate(os.Args[2:])
	case "create-user":
		runCreateUser(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage, "\n")
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage, "\n")
		os.Exit(1)
	}
}

// migrations run in order inside a single transaction. The trigger function
// publishes every row change on the todo_changes channel so live sessions
// reconcile without polling.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS todos (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		image_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_user_created ON todos (user_id, created_at DESC, id DESC)`,
	`CREATE OR REPLACE FUNCTION touch_updated_at() RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = now();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS todos_touch_updated_at ON todos`,
	`CREATE TRIGGER todos_touch_updated_at
		BEFORE UPDATE ON todos
		FOR EACH ROW EXECUTE FUNCTION touch_updated_at()`,
	`CREATE OR REPLACE FUNCTION notify_todo_change() RETURNS TRIGGER AS $$
	BEGIN
		IF TG_OP = 'DELETE' THEN
			PERFORM pg_notify('todo_changes', json_build_object(
				'op', TG_OP,
				'row', row_to_json(OLD)
			)::text);
			RETURN OLD;
		END IF;
		PERFORM pg_notify('todo_changes', json_build_object(
			'op', TG_OP,
			'row', row_to_json(NEW)
		)::text);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS todos_notify_change ON todos`,
	`CREATE TRIGGER todos_notify_change
		AFTER INSERT OR UPDATE OR DELETE ON todos
		FOR EACH ROW EXECUTE FUNCTION notify_todo_change()`,
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	timeoutStr := fs.String("timeout", "2m", "Timeout for the operation (e.g., 30s, 5m)")

	fs.Usage = func() {
		fmt.Println("Usage: admin migrate [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	for i, stmt := range migrations {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			log.Fatalf("Migration step %d failed: %v", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		log.Fatalf("Failed to commit migrations: %v", err)
	}

	log.Printf("Applied %d migration steps in %v", len(migrations), time.Since(start).Round(time.Millisecond))
}

func runCreateUser(args []string) {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	email := fs.String("email", "", "Email address (required)")
	name := fs.String("name", "", "Display name (required)")
	password := fs.String("password", "", "Password (required)")
	timeoutStr := fs.String("timeout", "30s", "Timeout for the operation")

	fs.Usage = func() {
		fmt.Println("Usage: admin create-user [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println(`  admin create-user --email=ana@example.com --name="Ana" --password=secret`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *email == "" || *name == "" || *password == "" {
		fmt.Println("Error: --email, --name and --password are required")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	params := user.CreateUserParams{Email: *email, Name: *name, PasswordHash: hash}
	if err := params.Validate(); err != nil {
		log.Fatalf("Invalid user parameters: %v", err)
	}

	userRepo := postgres.NewUserRepository(db)
	created, err := userRepo.Create(ctx, params)
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	log.Printf("Created user %d (%s)", created.ID, created.Email)
}
