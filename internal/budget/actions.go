package budget

import (
	"fmt"
	"os"

	"github.com/dtnitsch/second-look/internal/common"
	budgetpkg "github.com/dtnitsch/second-look/pkg/budget"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

// ShowAction prints the saved monthly plan.
func ShowAction(c *cli.Context) error {
	svc, err := common.Setup(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer svc.Close()

	plan, ok, err := svc.DB.GetBudget()
	if err != nil {
		return fmt.Errorf("failed to read budget: %w", err)
	}
	if !ok {
		fmt.Println("No budget saved. Checkout warnings compare against your bank balance.")
		fmt.Println("\nTip: Use 'secondlook budget set --salary ... --rent ...' to save one")
		return nil
	}

	if f := c.String("format"); f != "" {
		return common.WriteOutput(os.Stdout, plan, f)
	}
	printPlan(plan)
	return nil
}

// SetAction updates the monthly plan. Flags not given keep their saved
// value.
func SetAction(c *cli.Context) error {
	svc, err := common.Setup(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer svc.Close()

	plan, _, err := svc.DB.GetBudget()
	if err != nil {
		return fmt.Errorf("failed to read budget: %w", err)
	}

	fields := []struct {
		flag string
		dst  *decimal.Decimal
	}{
		{"salary", &plan.Salary}, {"rent", &plan.Rent}, {"loans", &plan.Loans}, {"savings", &plan.Savings},
	}
	changed := false
	for _, f := range fields {
		if !c.IsSet(f.flag) {
			continue
		}
		v, err := decimal.NewFromString(c.String(f.flag))
		if err != nil {
			return fmt.Errorf("invalid --%s %q: %w", f.flag, c.String(f.flag), err)
		}
		if v.IsNegative() {
			return fmt.Errorf("--%s must not be negative", f.flag)
		}
		*f.dst = v
		changed = true
	}
	if !changed {
		return fmt.Errorf("nothing to set: pass at least one of --salary, --rent, --loans, --savings")
	}

	if err := svc.DB.SaveBudget(plan); err != nil {
		return err
	}
	fmt.Println("Budget saved.")
	printPlan(plan)
	return nil
}

func printPlan(plan budgetpkg.Plan) {
	fmt.Printf("%-10s $%s\n", "Salary", plan.Salary.StringFixed(2))
	fmt.Printf("%-10s $%s\n", "Rent", plan.Rent.StringFixed(2))
	fmt.Printf("%-10s $%s\n", "Loans", plan.Loans.StringFixed(2))
	fmt.Printf("%-10s $%s\n", "Savings", plan.Savings.StringFixed(2))
	fmt.Printf("%-10s $%s per month\n", "Safe", plan.MonthlyBudget().StringFixed(2))
}
