// File: cmd/seed/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"webnovel-billing/internal/config"
	pg "webnovel-billing/internal/infra/db/postgres"
	"webnovel-billing/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	pkgUC := usecase.NewPackageUseCase(pg.NewPackageRepo(pool))

	// If any packages already exist, do nothing.
	existing, err := pkgUC.ListActive(ctx)
	if err != nil {
		log.Fatalf("list packages: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d packages already present. No changes.\n", len(existing))
		for _, p := range existing {
			fmt.Printf("  - %s (%s, %d %s)\n", p.Name, p.Kind, p.PriceCents, p.Currency)
		}
		return
	}

	coinSeed := []struct {
		Name  string
		Coins int64
		Price int64
	}{
		{"Pouch of Coins", 500, 4_99},
		{"Chest of Coins", 1_200, 9_99},
		{"Vault of Coins", 6_500, 49_99},
	}
	for _, s := range coinSeed {
		p, err := pkgUC.CreateCoinPackage(ctx, s.Name, s.Coins, s.Price, "USD")
		if err != nil {
			log.Fatalf("create package %q: %v", s.Name, err)
		}
		fmt.Printf("seeded: %s (id=%s, coins=%d, price=%d USD cents)\n", p.Name, p.ID, p.Coins, p.PriceCents)
	}

	memberSeed := []struct {
		Name  string
		Days  int
		Price int64
	}{
		{"Premium Monthly", 30, 7_99},
		{"Premium Yearly", 365, 79_99},
	}
	for _, s := range memberSeed {
		p, err := pkgUC.CreateMembershipPackage(ctx, s.Name, s.Days, s.Price, "USD")
		if err != nil {
			log.Fatalf("create package %q: %v", s.Name, err)
		}
		fmt.Printf("seeded: %s (id=%s, days=%d, price=%d USD cents)\n", p.Name, p.ID, p.DurationDays, p.PriceCents)
	}

	fmt.Println("✅ Seeding complete.")
}
