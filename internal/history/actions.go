package history

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dtnitsch/second-look/internal/common"
	"github.com/dtnitsch/second-look/pkg/bank"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

// HistoryAction prints the account balance and recent purchases, newest
// first.
func HistoryAction(c *cli.Context) error {
	svc, err := common.Setup(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer svc.Close()

	if svc.Bank == nil {
		return fmt.Errorf("bank not configured: set NESSIE_API_KEY and NESSIE_ACCOUNT_ID")
	}

	data, err := svc.Bank.FetchData(c.Context)
	if err != nil {
		return fmt.Errorf("failed to fetch bank data: %w", err)
	}
	bank.SortNewest(data.Purchases)

	limit := c.Int("limit")
	if limit > 0 && len(data.Purchases) > limit {
		data.Purchases = data.Purchases[:limit]
	}

	if f := c.String("format"); f != "" {
		return common.WriteOutput(os.Stdout, data, f)
	}

	balance, _ := data.Balance.Float64()
	fmt.Printf("Balance: $%s\n\n", humanize.CommafWithDigits(balance, 2))

	if len(data.Purchases) == 0 {
		fmt.Println("No purchases found")
		return nil
	}

	fmt.Printf("%-12s %-14s %-12s %s\n", "Date", "When", "Amount", "Description")
	fmt.Println(strings.Repeat("-", 80))
	now := time.Now()
	for _, p := range data.Purchases {
		date, when := "-", "-"
		if !p.Date.IsZero() {
			date = p.Date.String()
			when = humanize.RelTime(p.Date.Time, now, "ago", "from now")
		}
		amount, _ := p.Amount.Float64()
		fmt.Printf("%-12s %-14s %-12s %s\n", date, when, "$"+humanize.CommafWithDigits(amount, 2), p.Description)
	}

	fmt.Printf("\nTotal: %d purchases\n", len(data.Purchases))
	return nil
}
