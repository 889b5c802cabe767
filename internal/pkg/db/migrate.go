package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Migrate applies the database schema. Statements are idempotent so the
// function can run on every startup and inside tests.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: profiles
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS profiles (
			id UUID PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			balance BIGINT NOT NULL DEFAULT 0,
			linkedin_url TEXT,
			github_url TEXT,
			website_url TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: profiles table created")

	// Migration 2: projects
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS projects (
			id UUID PRIMARY KEY,
			owner_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			motivation TEXT NOT NULL DEFAULT '',
			progress_score INT NOT NULL DEFAULT 0 CHECK (progress_score BETWEEN 0 AND 100),
			valuation_low BIGINT,
			valuation_high BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: projects table created")

	// Migration 3: reward ledger. The UNIQUE constraint on idempotency_key is
	// the arbiter for concurrent duplicate awards.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS reward_ledger (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			event_type VARCHAR(50) NOT NULL,
			amount BIGINT NOT NULL CHECK (amount >= 0),
			balance_after BIGINT NOT NULL,
			idempotency_key TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_reward_ledger_user_time ON reward_ledger(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_reward_ledger_rate ON reward_ledger(user_id, project_id, event_type, created_at);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: reward_ledger table created")

	// Migration 4: messages
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			role VARCHAR(20) NOT NULL,
			content TEXT NOT NULL,
			tag VARCHAR(20),
			extracted_intent VARCHAR(20),
			pineapples_earned BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_messages_project_time ON messages(project_id, created_at);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: messages table created")

	// Migration 5: chat summaries
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chat_summaries (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			summary TEXT NOT NULL,
			messages_up_to TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_chat_summaries_project ON chat_summaries(project_id, messages_up_to DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: chat_summaries table created")

	// Migration 6: traction signals
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS traction_signals (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			signal_type VARCHAR(50) NOT NULL,
			description VARCHAR(500) NOT NULL,
			source VARCHAR(50) NOT NULL,
			message_id UUID,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_traction_project_time ON traction_signals(project_id, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 6: traction_signals table created")

	// Migration 7: activities
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS activities (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			activity_type VARCHAR(50) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_activities_project_time ON activities(project_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_activities_project_type ON activities(project_id, activity_type);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 7: activities table created")

	// Migration 8: offers
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS offers (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			offer_low BIGINT NOT NULL CHECK (offer_low >= 0),
			offer_high BIGINT NOT NULL CHECK (offer_high >= 0),
			reasoning TEXT NOT NULL DEFAULT '',
			signals JSONB NOT NULL DEFAULT '[]',
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_offers_project_user_status ON offers(project_id, user_id, status);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 8: offers table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
