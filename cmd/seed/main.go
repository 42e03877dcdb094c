package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/badmintontv/badmintontv/app/models"
	"github.com/badmintontv/badmintontv/app/repository"
	"github.com/badmintontv/badmintontv/internal/pkg/billing"
	"github.com/badmintontv/badmintontv/internal/pkg/database"
	"github.com/badmintontv/badmintontv/internal/pkg/env"
	"github.com/badmintontv/badmintontv/internal/pkg/gateway"
	"github.com/badmintontv/badmintontv/internal/pkg/scanner"
)

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())

	var err error
	switch os.Args[1] {
	case "users":
		err = seedUsers()
	case "videos":
		err = seedVideos()
	case "sync-plans":
		err = syncPlans()
	case "test-clock":
		err = createTestClock()
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}
}

// seedUsers creates a development admin account plus a couple of members.
// Existing accounts are left alone so the command can be run repeatedly.
func seedUsers() error {
	users := []struct {
		username string
		email    string
		password string
		role     string
	}{
		{"admin", env.GetEnv("SEED_ADMIN_EMAIL", "admin@local.host"), env.GetEnv("SEED_ADMIN_PASSWORD", "password"), "admin"},
		{"member_one", "member1@local.host", "password", "member"},
		{"member_two", "member2@local.host", "password", "member"},
	}

	repos := repository.GetGlobalRepositories()
	for _, u := range users {
		if _, err := repos.User.GetByUsername(u.username); err == nil {
			log.Printf("User %s already exists, skipping", u.username)
			continue
		}

		user, err := models.CreateUser(u.username, u.email, u.password)
		if err != nil {
			return fmt.Errorf("failed to build user %s: %w", u.username, err)
		}
		user.Role = u.role
		user.Confirmed = true

		if err := repos.User.Create(user); err != nil {
			return fmt.Errorf("failed to create user %s: %w", u.username, err)
		}
		log.Printf("Created %s user %s (%s)", u.role, u.username, u.email)
	}
	return nil
}

// seedVideos runs one scan of the video directory
func seedVideos() error {
	dir := env.GetEnv("VID_DIR", "")
	if dir == "" {
		return fmt.Errorf("VID_DIR is not set")
	}

	added, err := scanner.NewScanner(repository.GetGlobalRepositories(), dir).Scan()
	if err != nil {
		return err
	}
	log.Printf("Scan finished, %d new videos", added)
	return nil
}

// syncPlans pushes the plan catalog to the payment provider
func syncPlans() error {
	svc := billing.NewServiceFromDB(database.GetDB(), gateway.NewStripeGatewayFromEnv())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := svc.SyncCatalog(ctx); err != nil {
		return err
	}
	log.Println("Plan catalog synced with the payment provider")
	return nil
}

// createTestClock creates a simulated billing clock for local testing and
// prints its ID. Put it in STRIPE_TEST_CLOCK so new dev customers attach to it.
func createTestClock() error {
	gw := gateway.NewStripeGatewayFromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	id, err := gw.CreateTestClock(ctx, fmt.Sprintf("dev-%s", now.Format("2006-01-02")), now.Unix())
	if err != nil {
		return err
	}
	fmt.Printf("STRIPE_TEST_CLOCK=%s\n", id)
	return nil
}

func printUsage() {
	fmt.Println("Usage: go run cmd/seed/main.go [command]")
	fmt.Println("Available commands:")
	fmt.Println("  users      - Create development accounts")
	fmt.Println("  videos     - Scan the video directory once")
	fmt.Println("  sync-plans - Push the plan catalog to the payment provider")
	fmt.Println("  test-clock - Create a simulated billing clock")
}
