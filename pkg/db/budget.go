package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dtnitsch/second-look/pkg/budget"
	"github.com/shopspring/decimal"
)

// GetBudget returns the saved plan. ok is false when none was saved.
func (db *DB) GetBudget() (plan budget.Plan, ok bool, err error) {
	var salary, rent, loans, savings string
	err = db.QueryRow(`SELECT salary, rent, loans, savings FROM budget_settings WHERE id = 1`).
		Scan(&salary, &rent, &loans, &savings)
	if errors.Is(err, sql.ErrNoRows) {
		return budget.Plan{}, false, nil
	}
	if err != nil {
		return budget.Plan{}, false, fmt.Errorf("failed to read budget: %w", err)
	}

	fields := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{salary, &plan.Salary}, {rent, &plan.Rent}, {loans, &plan.Loans}, {savings, &plan.Savings},
	}
	for _, f := range fields {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return budget.Plan{}, false, fmt.Errorf("bad budget value %q: %w", f.raw, err)
		}
	}
	return plan, true, nil
}

// SaveBudget replaces the saved plan.
func (db *DB) SaveBudget(plan budget.Plan) error {
	_, err := db.Exec(`
		INSERT INTO budget_settings (id, salary, rent, loans, savings, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			salary = excluded.salary,
			rent = excluded.rent,
			loans = excluded.loans,
			savings = excluded.savings,
			updated_at = excluded.updated_at
	`, plan.Salary.String(), plan.Rent.String(), plan.Loans.String(), plan.Savings.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}
	return nil
}
