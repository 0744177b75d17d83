// File: cmd/seed/main.go
// Applies the database schema and seeds the owner account.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"telegram-secret-relay/internal/config"
	"telegram-secret-relay/internal/domain"
	"telegram-secret-relay/internal/domain/model"
	"telegram-secret-relay/internal/domain/ports/repository"
	pg "telegram-secret-relay/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, pg.Schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	log.Println("schema applied")

	users := pg.NewPostgresUserRepo(pool)
	owner, err := users.FindByTelegramID(ctx, repository.NoTX, cfg.Telegram.OwnerID)
	if err != nil && err != domain.ErrNotFound {
		log.Fatalf("lookup owner: %v", err)
	}
	if owner == nil {
		owner, err = model.NewUser("", cfg.Telegram.OwnerID, "")
		if err != nil {
			log.Fatalf("owner user: %v", err)
		}
	}
	owner.Role = model.RoleOwner
	owner.IsSudo = true
	if err := users.Save(ctx, repository.NoTX, owner); err != nil {
		log.Fatalf("save owner: %v", err)
	}
	log.Printf("owner %d seeded", cfg.Telegram.OwnerID)
}
