package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Assadbaloch/Gmaps-scraper/config"
	"github.com/Assadbaloch/Gmaps-scraper/models"
	"github.com/Assadbaloch/Gmaps-scraper/pipeline"
)

// PostgresStore persists leads as they are emitted. It satisfies sink.Sink
// so it can be fanned out next to the JSONL file.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(cfg config.Config) (*PostgresStore, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBSSLMode,
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer schemaCancel()
	if err := store.ensureSchema(schemaCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Append upserts a single lead, keyed by its normalized identity. The
// pipeline already deduplicates within a run; the conflict clause covers
// re-runs against the same database.
func (s *PostgresStore) Append(lead *models.Lead) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leads (
			dedup_key, business_name, address, phone, website, email,
			rating, reviews_count, category, price_level, plus_code, closed,
			filter_status, query_search_term, query_location, query_index
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (dedup_key) DO UPDATE
		SET
			phone = EXCLUDED.phone,
			website = EXCLUDED.website,
			email = EXCLUDED.email,
			rating = EXCLUDED.rating,
			reviews_count = EXCLUDED.reviews_count,
			filter_status = EXCLUDED.filter_status,
			updated_at = NOW()`,
		pipeline.Key(&lead.Candidate),
		lead.BusinessName,
		lead.Address,
		lead.Phone,
		lead.Website,
		lead.Email,
		lead.Rating,
		lead.ReviewsCount,
		lead.Category,
		lead.PriceLevel,
		lead.PlusCode,
		lead.Closed,
		string(lead.FilterStatus),
		lead.QuerySearchTerm,
		lead.QueryLocation,
		lead.QueryIndex,
	)
	if err != nil {
		return fmt.Errorf("insert lead %q: %w", lead.BusinessName, err)
	}
	return nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS leads (
			id BIGSERIAL PRIMARY KEY,
			dedup_key TEXT NOT NULL UNIQUE,
			business_name TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			website TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			rating REAL NOT NULL DEFAULT 0,
			reviews_count INTEGER NOT NULL DEFAULT 0,
			category TEXT NOT NULL DEFAULT '',
			price_level TEXT NOT NULL DEFAULT '',
			plus_code TEXT NOT NULL DEFAULT '',
			closed BOOLEAN NOT NULL DEFAULT FALSE,
			filter_status TEXT NOT NULL,
			query_search_term TEXT NOT NULL,
			query_location TEXT NOT NULL,
			query_index INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_leads_query ON leads(query_search_term, query_location);
		CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(filter_status);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
