// Package budget turns a cart total into a spending warning.
package budget

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// highImpactShare is the fraction of the balance above which a purchase
// earns a caution.
var highImpactShare = decimal.RequireFromString("0.3")

// Plan is the user's monthly allocation.
type Plan struct {
	Salary  decimal.Decimal `json:"salary" yaml:"salary"`
	Rent    decimal.Decimal `json:"rent" yaml:"rent"`
	Loans   decimal.Decimal `json:"loans" yaml:"loans"`
	Savings decimal.Decimal `json:"savings" yaml:"savings"`
}

// MonthlyBudget is what is left to spend each month. It may be negative.
func (p Plan) MonthlyBudget() decimal.Decimal {
	return p.Salary.Sub(p.Rent).Sub(p.Loans).Sub(p.Savings)
}

// IsZero reports whether nothing was entered.
func (p Plan) IsZero() bool {
	return p.Salary.IsZero() && p.Rent.IsZero() && p.Loans.IsZero() && p.Savings.IsZero()
}

// Guard compares the cart with the bank balance.
func Guard(cartTotal, balance decimal.Decimal) string {
	total, bal := money(cartTotal), money(balance)
	switch {
	case cartTotal.GreaterThan(balance):
		return fmt.Sprintf("🛑 WARNING: This cart (%s) is GREATER than your Nessie Balance (%s)!", total, bal)
	case cartTotal.GreaterThan(balance.Mul(highImpactShare)):
		return fmt.Sprintf("⚠️ CAUTION: This %s purchase is a huge chunk of your %s balance. Do you really need it?", total, bal)
	default:
		return fmt.Sprintf("💡 Second Look: You have %s left. Spending %s leaves you with %s.", bal, total, money(balance.Sub(cartTotal)))
	}
}

// Burn compares the cart with the monthly safe-to-spend budget. An unknown
// (zero) total yields no message.
func Burn(cartTotal, monthlyBudget decimal.Decimal) string {
	if cartTotal.IsZero() {
		return ""
	}
	if cartTotal.GreaterThan(monthlyBudget) {
		return fmt.Sprintf("⚠️ OVER BUDGET: This %s purchase exceeds your monthly Safe-to-Spend limit of %s!",
			money(cartTotal), money(monthlyBudget))
	}
	return fmt.Sprintf("💡 Budget Guardian: You have %s Monthly Safe-to-Spend. This leaves you with %s for other goals.",
		money(monthlyBudget), money(monthlyBudget.Sub(cartTotal)))
}

// Message picks Burn when the user has saved a plan, Guard otherwise. An
// unknown (zero) total still reports what is available.
func Message(cartTotal, balance decimal.Decimal, plan *Plan) string {
	if plan != nil && !plan.IsZero() {
		if cartTotal.IsZero() {
			return fmt.Sprintf("💡 Budget Guardian: You have %s Monthly Safe-to-Spend. We couldn't read this cart's total.",
				money(plan.MonthlyBudget()))
		}
		return Burn(cartTotal, plan.MonthlyBudget())
	}
	if cartTotal.IsZero() {
		return fmt.Sprintf("💡 Second Look: You have %s available. We couldn't read this cart's total.", money(balance))
	}
	return Guard(cartTotal, balance)
}

// ConnectivityMessage is shown when the bank cannot be reached.
const ConnectivityMessage = "⚠️ Connectivity Issue: Reaching out to bank..."

func money(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
