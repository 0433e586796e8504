// Command main runs the database seeder for gatekeeper.
package main

import (
	"context"
	"flag"
	"log"

	"gatekeeper/internal/config"
	"gatekeeper/internal/database"
	"gatekeeper/internal/middleware"
	"gatekeeper/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of random users to create")
	numPosts := flag.Int("posts", 100, "Number of posts to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fixtures := flag.String("fixtures", "", `Load a YAML fixture file instead of random data ("demo" for the bundled set)`)
	dryRun := flag.Bool("dry-run", false, "Build data without writing it")
	fast := flag.Bool("fast", false, "Hash passwords at the minimum bcrypt cost")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.InitLogger(cfg.Env)

	ctx := context.Background()
	db, err := database.ConnectWithOptions(ctx, cfg, database.ConnectOptions{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		ShouldClean: *shouldClean,
		DryRun:      *dryRun,
		SkipBcrypt:  *fast,
	})

	var res *seed.Result
	if *fixtures != "" {
		log.Printf("Applying fixtures: %s", *fixtures)
		fx, err := seed.LoadFixtures(*fixtures)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		if *shouldClean {
			if err := s.ClearAll(ctx); err != nil {
				log.Fatalf("❌ Cleanup failed: %v", err)
			}
		}
		res, err = s.ApplyFixtures(ctx, fx)
		if err != nil {
			log.Fatalf("❌ Fixture seeding failed: %v", err)
		}
	} else {
		log.Printf("Target: %d users, %d posts, clean=%v", *numUsers, *numPosts, *shouldClean)
		res, err = s.Seed(ctx)
		if err != nil {
			log.Fatalf("❌ Seeding failed: %v", err)
		}
	}

	for status, n := range res.ByStatus {
		log.Printf("  %-17s %d", status, n)
	}
	log.Println("✨ All done! Your database is now populated with test data.")
	log.Printf("📧 Generated accounts use the password: %s", seed.DefaultPassword)
}
