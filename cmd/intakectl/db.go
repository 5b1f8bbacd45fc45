package main

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/config"
	"github.com/jwalitptl/intake-api/internal/repository/postgres"
	"github.com/jwalitptl/intake-api/internal/seed"
)

func openDB() (*sqlx.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return postgres.NewDB(cfg.Database)
}

func newSeeder(db *sqlx.DB) *seed.Seeder {
	base := postgres.NewBaseRepository(db)
	return seed.NewSeeder(
		&base,
		postgres.NewPatientRepository(base),
		postgres.NewEHRRepository(base),
		postgres.NewNarrativeRepository(base),
		postgres.NewConversationRepository(base),
		postgres.NewBriefingRepository(base),
	)
}
