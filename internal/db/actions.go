package db

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dtnitsch/second-look/internal/common"
	dbpkg "github.com/dtnitsch/second-look/pkg/db"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

func AnalysesAction(c *cli.Context) error {
	database, err := openDatabase(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer database.Close()

	recs, err := database.ListAnalyses(c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list analyses: %w", err)
	}

	if len(recs) == 0 {
		fmt.Println("No analyses found")
		return nil
	}

	// Print table header
	fmt.Printf("%-10s %-16s %-18s %-10s %-5s %-5s %-18s %s\n",
		"ID", "When", "Status", "Total", "Dups", "Mkt", "Company", "URL")
	fmt.Println(strings.Repeat("-", 120))

	now := time.Now()
	for _, r := range recs {
		fmt.Printf("%-10s %-16s %-18s %-10s %-5d %-5d %-18s %s\n",
			shortID(r.ID),
			humanize.RelTime(r.CreatedAt, now, "ago", "from now"),
			r.Status,
			"$"+r.CartTotal.StringFixed(2),
			len(r.Analysis.Duplicates),
			len(r.Analysis.MarketInsights),
			orDash(r.Company),
			r.URL,
		)
	}

	fmt.Printf("\nTotal: %d analyses\n", len(recs))
	fmt.Printf("\nTip: Use 'secondlook db analysis <id>' to see details\n")

	return nil
}

// AnalysisAction shows one analysis, the latest when no id is given.
func AnalysisAction(c *cli.Context) error {
	database, err := openDatabase(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer database.Close()

	id, err := GetAnalysisIDOrLatest(c, database)
	if err != nil {
		return err
	}

	rec, err := database.GetAnalysis(id)
	if errors.Is(err, dbpkg.ErrNotFound) {
		rec, err = database.FindAnalysis(id)
	}
	if err != nil {
		return fmt.Errorf("failed to get analysis: %w", err)
	}

	if f := c.String("format"); f != "" {
		return common.WriteOutput(os.Stdout, rec, f)
	}

	fmt.Printf("Analysis %s\n", rec.ID)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Created:   %s (%s)\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(rec.CreatedAt))
	fmt.Printf("URL:       %s\n", rec.URL)
	fmt.Printf("Company:   %s\n", orDash(rec.Company))
	fmt.Printf("Total:     $%s\n", rec.CartTotal.StringFixed(2))
	fmt.Printf("Status:    %s\n", rec.Status)
	if rec.Error != "" {
		fmt.Printf("Error:     %s\n", rec.Error)
	}
	fmt.Printf("Language:  %s\n", orDash(rec.Language))
	fmt.Printf("Keywords:  %s\n", orDash(strings.Join(rec.Keywords, ", ")))
	fmt.Printf("Budget:    %s\n", rec.BudgetMessage)

	if len(rec.Analysis.Duplicates) > 0 {
		fmt.Printf("\nDuplicates (%d):\n", len(rec.Analysis.Duplicates))
		fmt.Println(strings.Repeat("-", 60))
		for i, d := range rec.Analysis.Duplicates {
			fmt.Printf("%2d. %s\n    matched %q [%s] %s\n", i+1, d.CartItem, d.HistoryItem, d.Category, d.PurchaseDate)
		}
	}
	if len(rec.Analysis.MarketInsights) > 0 {
		fmt.Printf("\nMarket insights (%d):\n", len(rec.Analysis.MarketInsights))
		fmt.Println(strings.Repeat("-", 60))
		for i, m := range rec.Analysis.MarketInsights {
			fmt.Printf("%2d. %s: %s\n", i+1, m.Company, m.Message)
			for _, alt := range m.Alternatives {
				fmt.Printf("    - %s: %s\n", alt.Name, alt.Reason)
			}
		}
	}

	return nil
}

func SyncsAction(c *cli.Context) error {
	database, err := openDatabase(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer database.Close()

	syncs, err := database.ListSyncs(c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list purchase syncs: %w", err)
	}

	if len(syncs) == 0 {
		fmt.Println("No purchase syncs found")
		return nil
	}

	fmt.Printf("%-10s %-16s %-8s %-10s %-40s %s\n", "ID", "When", "Status", "Amount", "Description", "Error")
	fmt.Println(strings.Repeat("-", 120))

	now := time.Now()
	for _, s := range syncs {
		fmt.Printf("%-10s %-16s %-8s %-10s %-40s %s\n",
			shortID(s.ID),
			humanize.RelTime(s.CreatedAt, now, "ago", "from now"),
			s.Status,
			"$"+s.Amount.StringFixed(2),
			truncate(s.Description, 40),
			s.Error,
		)
	}

	fmt.Printf("\nTotal: %d syncs\n", len(syncs))
	return nil
}

func SessionsAction(c *cli.Context) error {
	database, err := openDatabase(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer database.Close()

	sessions, err := database.ListSessions(c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found")
		return nil
	}

	fmt.Printf("%-6s %-20s %-8s %-12s %-9s %-6s %s\n",
		"ID", "Started", "Mode", "Duration", "Analyses", "Syncs", "Start URL")
	fmt.Println(strings.Repeat("-", 120))

	for _, s := range sessions {
		duration := "running"
		if s.EndedAt != nil {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		fmt.Printf("%-6d %-20s %-8s %-12s %-9d %-6d %s\n",
			s.SessionID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Mode,
			duration,
			s.AnalysisCount,
			s.SyncCount,
			orDash(s.StartURL),
		)
	}

	fmt.Printf("\nTotal: %d sessions\n", len(sessions))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
