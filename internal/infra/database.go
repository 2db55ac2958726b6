package infra

import (
	"fmt"

	"retailpos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens a GORM connection backed by pgx, migrates the schema and
// applies the SQL patches GORM tags cannot express.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// maps unique violations to gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates/updates all tables then applies schema patches.
// Safe to run on every start.
func RunMigrations(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return fmt.Errorf("pgcrypto: %w", err)
	}
	if err := db.AutoMigrate(
		&model.Customer{},
		&model.Order{},
		&model.OrderLine{},
		&model.Debt{},
		&model.Payment{},
		&model.Draft{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL: code sequences, the per-tenant
// idempotency index, and CHECK constraints backing the ledger invariants.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"orders code sequence", `CREATE SEQUENCE IF NOT EXISTS orders_code_seq`},
		{"customers code sequence", `CREATE SEQUENCE IF NOT EXISTS customers_code_seq`},

		// keys are opaque client tokens, unique only within one tenant
		{"orders idempotency index", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_owner_idempotency
    ON orders (owner_id, idempotency_key)
    WHERE idempotency_key IS NOT NULL`},

		{"debts open-by-customer index", `
CREATE INDEX IF NOT EXISTS idx_debts_customer_open
    ON debts (customer_id)
    WHERE status <> 'PAID' AND voided_at IS NULL`},

		{"debts balance check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_debts_balance') THEN
    ALTER TABLE debts ADD CONSTRAINT chk_debts_balance CHECK (
        paid_amount >= 0
        AND remaining_amount >= 0
        AND remaining_amount = total_amount - paid_amount
        AND ((status = 'PAID') = (remaining_amount = 0)));
  END IF;
END $$`},

		{"payments positive amount", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_payments_positive') THEN
    ALTER TABLE payments ADD CONSTRAINT chk_payments_positive CHECK (amount > 0);
  END IF;
END $$`},

		{"orders totals check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_orders_totals') THEN
    ALTER TABLE orders ADD CONSTRAINT chk_orders_totals CHECK (
        total_amount >= 0
        AND paid_amount >= 0
        AND paid_amount <= total_amount
        AND discount_amount >= 0
        AND discount_amount <= subtotal);
  END IF;
END $$`},

		{"customers credit limit check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_customers_credit_limit') THEN
    ALTER TABLE customers ADD CONSTRAINT chk_customers_credit_limit CHECK (credit_limit >= 0);
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
