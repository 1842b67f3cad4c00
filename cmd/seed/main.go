package main

import (
	"context"
	"fmt"
	"log"

	"stallbook/internal/auth"
	"stallbook/internal/shared/config"
	"stallbook/internal/shared/constants"
	"stallbook/internal/shared/database"
	"stallbook/internal/stalls"

	"github.com/joho/godotenv"
)

type Seeder struct {
	db  *database.DB
	cfg *config.Config
}

func main() {
	fmt.Println("🌱 Starting stallbook database seeder...")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	if !cfg.Database.Enabled {
		log.Fatal("DB_ENABLED=false: nothing to seed")
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db, cfg: cfg}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(context.Background()); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates booking data and the stall catalog
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"payment_intents",
		"bookings",
		"stalls",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit().Error
}

// SeedAll seeds the admin account and the market floor
func (s *Seeder) SeedAll(ctx context.Context) error {
	if err := s.SeedAdmin(ctx); err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	if err := s.SeedStalls(ctx); err != nil {
		return fmt.Errorf("failed to seed stalls: %w", err)
	}

	// drop cached catalog entries so readers see the new floor
	if s.db.Redis != nil {
		iter := s.db.Redis.Scan(ctx, 0, constants.PATTERN_INVALIDATE_STALLS, 100).Iterator()
		for iter.Next(ctx) {
			if err := s.db.Redis.Del(ctx, iter.Val()).Err(); err != nil {
				log.Printf("Warning: failed to drop cache key %s: %v", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			log.Printf("Warning: failed to clear stall cache: %v", err)
		}
	}
	return nil
}

func (s *Seeder) SeedAdmin(ctx context.Context) error {
	fmt.Println("  👤 Seeding admin account...")
	svc := auth.NewService(auth.NewRepository(s.db.PostgreSQL), s.cfg, nil)
	account, err := svc.EnsureAccount(ctx, s.cfg.Admin.Name, s.cfg.Admin.Email, s.cfg.Admin.Password, auth.RoleAdmin)
	if err != nil {
		return err
	}
	fmt.Printf("    ✅ Admin account: %s (%s)\n", account.Email, account.Role)
	return nil
}

func (s *Seeder) SeedStalls(ctx context.Context) error {
	fmt.Println("  🏪 Seeding stalls...")
	repo := stalls.NewRepository(s.db.PostgreSQL)
	for _, stall := range stalls.BuildLayout(stalls.DefaultLayout) {
		if err := repo.Upsert(ctx, &stall); err != nil {
			return fmt.Errorf("failed to create stall %s: %w", stall.Code, err)
		}
	}
	for _, z := range stalls.DefaultLayout {
		fmt.Printf("    ✅ Zone %s: %d %s stalls at %.0f/day\n", z.Zone, z.Count, z.Size, z.Price)
	}
	return nil
}
