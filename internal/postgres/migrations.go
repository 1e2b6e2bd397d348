package postgres

import (
	"context"
)

// Migration is one idempotent schema statement
type Migration struct {
	Name      string
	Statement string
}

// Migrations creates the loyalty schema. Every statement is safe to re-run.
var Migrations = []Migration{
	{
		Name: "create_memberships",
		Statement: `CREATE TABLE IF NOT EXISTS memberships (
			id VARCHAR(50) PRIMARY KEY,
			guest_id VARCHAR(255) NOT NULL,
			points BIGINT NOT NULL DEFAULT 0 CHECK (points >= 0),
			tier VARCHAR(20) NOT NULL CHECK (tier IN ('silver', 'gold', 'platinum')),
			tier_override BOOLEAN NOT NULL DEFAULT FALSE,
			membership_status VARCHAR(20) NOT NULL CHECK (membership_status IN ('active', 'inactive')),
			enrolled_at TIMESTAMPTZ NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			status VARCHAR(20) NOT NULL DEFAULT 'published',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_by VARCHAR(255) NOT NULL DEFAULT 'system',
			updated_by VARCHAR(255) NOT NULL DEFAULT 'system'
		)`,
	},
	{
		Name:      "idx_memberships_guest_id",
		Statement: `CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_guest_id ON memberships(guest_id)`,
	},
	{
		Name: "create_loyalty_transactions",
		Statement: `CREATE TABLE IF NOT EXISTS loyalty_transactions (
			id VARCHAR(50) PRIMARY KEY,
			membership_id VARCHAR(50) NOT NULL REFERENCES memberships(id) ON DELETE CASCADE,
			type VARCHAR(20) NOT NULL CHECK (type IN ('earn', 'redeem', 'adjustment', 'bonus', 'expiry')),
			points BIGINT NOT NULL CHECK (points <> 0),
			balance_after BIGINT NOT NULL CHECK (balance_after >= 0),
			description TEXT NOT NULL DEFAULT '',
			performed_by VARCHAR(255) NOT NULL,
			reference_type VARCHAR(50) NOT NULL DEFAULT '',
			reference_id VARCHAR(255) NOT NULL DEFAULT '',
			idempotency_key VARCHAR(255),
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	},
	{
		Name:      "idx_loyalty_transactions_membership",
		Statement: `CREATE INDEX IF NOT EXISTS idx_loyalty_transactions_membership ON loyalty_transactions(membership_id, created_at DESC)`,
	},
	{
		Name:      "idx_loyalty_transactions_idempotency_key",
		Statement: `CREATE UNIQUE INDEX IF NOT EXISTS idx_loyalty_transactions_idempotency_key ON loyalty_transactions(idempotency_key) WHERE idempotency_key IS NOT NULL`,
	},
	{
		Name:      "idx_loyalty_transactions_reference",
		Statement: `CREATE INDEX IF NOT EXISTS idx_loyalty_transactions_reference ON loyalty_transactions(reference_type, reference_id)`,
	},
	{
		Name:      "idx_loyalty_transactions_expires_at",
		Statement: `CREATE INDEX IF NOT EXISTS idx_loyalty_transactions_expires_at ON loyalty_transactions(expires_at) WHERE expires_at IS NOT NULL`,
	},
	{
		Name: "create_rewards",
		Statement: `CREATE TABLE IF NOT EXISTS rewards (
			id VARCHAR(50) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category VARCHAR(100) NOT NULL DEFAULT '',
			points_cost BIGINT NOT NULL CHECK (points_cost > 0),
			min_tier_required VARCHAR(20),
			stock_available INTEGER CHECK (stock_available >= 0),
			max_redemptions_per_guest INTEGER,
			validity_days INTEGER NOT NULL DEFAULT 0,
			reward_status VARCHAR(20) NOT NULL CHECK (reward_status IN ('active', 'inactive')),
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			status VARCHAR(20) NOT NULL DEFAULT 'published',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_by VARCHAR(255) NOT NULL DEFAULT 'system',
			updated_by VARCHAR(255) NOT NULL DEFAULT 'system'
		)`,
	},
	{
		Name: "create_reward_redemptions",
		Statement: `CREATE TABLE IF NOT EXISTS reward_redemptions (
			id VARCHAR(50) PRIMARY KEY,
			membership_id VARCHAR(50) NOT NULL REFERENCES memberships(id) ON DELETE CASCADE,
			guest_id VARCHAR(255) NOT NULL,
			reward_id VARCHAR(50) NOT NULL REFERENCES rewards(id),
			points_spent BIGINT NOT NULL,
			code VARCHAR(20) NOT NULL,
			transaction_id VARCHAR(50) NOT NULL,
			idempotency_key VARCHAR(255),
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_by VARCHAR(255) NOT NULL DEFAULT 'system'
		)`,
	},
	{
		Name:      "idx_reward_redemptions_membership_reward",
		Statement: `CREATE INDEX IF NOT EXISTS idx_reward_redemptions_membership_reward ON reward_redemptions(membership_id, reward_id)`,
	},
	{
		Name:      "idx_reward_redemptions_idempotency_key",
		Statement: `CREATE UNIQUE INDEX IF NOT EXISTS idx_reward_redemptions_idempotency_key ON reward_redemptions(idempotency_key) WHERE idempotency_key IS NOT NULL`,
	},
	{
		Name: "create_loyalty_rules",
		Statement: `CREATE TABLE IF NOT EXISTS loyalty_rules (
			id VARCHAR(50) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			trigger VARCHAR(50) NOT NULL,
			conditions JSONB NOT NULL DEFAULT '{}'::jsonb,
			action JSONB NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			priority INTEGER NOT NULL DEFAULT 0,
			max_executions_per_user INTEGER,
			expiry_days INTEGER,
			execution_count BIGINT NOT NULL DEFAULT 0,
			last_executed_at TIMESTAMPTZ,
			status VARCHAR(20) NOT NULL DEFAULT 'published',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_by VARCHAR(255) NOT NULL DEFAULT 'system',
			updated_by VARCHAR(255) NOT NULL DEFAULT 'system'
		)`,
	},
	{
		Name:      "idx_loyalty_rules_trigger",
		Statement: `CREATE INDEX IF NOT EXISTS idx_loyalty_rules_trigger ON loyalty_rules(trigger, is_active, priority DESC)`,
	},
	{
		Name: "create_rule_executions",
		Statement: `CREATE TABLE IF NOT EXISTS rule_executions (
			id VARCHAR(50) PRIMARY KEY,
			rule_id VARCHAR(50) NOT NULL REFERENCES loyalty_rules(id),
			guest_id VARCHAR(255) NOT NULL,
			membership_id VARCHAR(50) NOT NULL REFERENCES memberships(id) ON DELETE CASCADE,
			event_id VARCHAR(255) NOT NULL DEFAULT '',
			trigger VARCHAR(50) NOT NULL,
			points_awarded BIGINT NOT NULL DEFAULT 0,
			execution_status VARCHAR(20) NOT NULL CHECK (execution_status IN ('success', 'failed', 'skipped')),
			reason TEXT NOT NULL DEFAULT '',
			transaction_id VARCHAR(50),
			idempotency_key VARCHAR(255),
			executed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	},
	{
		Name:      "idx_rule_executions_rule_membership",
		Statement: `CREATE INDEX IF NOT EXISTS idx_rule_executions_rule_membership ON rule_executions(rule_id, membership_id, execution_status)`,
	},
	{
		Name:      "idx_rule_executions_success_key",
		Statement: `CREATE UNIQUE INDEX IF NOT EXISTS idx_rule_executions_success_key ON rule_executions(idempotency_key) WHERE idempotency_key IS NOT NULL AND execution_status = 'success'`,
	},
}

// Migrate applies every migration in order inside one transaction. With dryRun
// the statements are only logged.
func (db *DB) Migrate(ctx context.Context, dryRun bool) error {
	if dryRun {
		for _, m := range Migrations {
			db.logger.Infow("dry run migration", "name", m.Name, "statement", m.Statement)
		}
		return nil
	}

	return db.WithTx(ctx, func(ctx context.Context) error {
		for _, m := range Migrations {
			db.logger.Infow("applying migration", "name", m.Name)
			if _, err := db.GetQuerier(ctx).ExecContext(ctx, m.Statement); err != nil {
				return WrapError(err, "migration "+m.Name)
			}
		}
		return nil
	})
}
