package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dtnitsch/second-look/internal/budget"
	"github.com/dtnitsch/second-look/internal/common"
	"github.com/dtnitsch/second-look/internal/db"
	"github.com/dtnitsch/second-look/internal/history"
	"github.com/dtnitsch/second-look/internal/inspect"
	"github.com/dtnitsch/second-look/internal/serve"
	"github.com/dtnitsch/second-look/internal/watch"
	"github.com/dtnitsch/second-look/pkg/help"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "secondlook",
		Usage:   "take a second look at your cart before you buy",
		Version: version,
		Flags:   common.GlobalFlags(),
		Commands: []*cli.Command{
			{
				Name:  "quickstart",
				Usage: "print a quick start guide",
				Action: func(c *cli.Context) error {
					fmt.Print(help.ColdstartYAML)
					return nil
				},
			},
			{
				Name:   "inspect",
				Usage:  "classify a page and show its cart total and summary",
				Action: inspect.InspectAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "page URL (fetched unless --file is given)"},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "read HTML from a file instead of fetching"},
					&cli.StringSliceFlag{Name: "urls", Usage: "inspect several pages concurrently (comma-separated)"},
					&cli.IntFlag{Name: "workers", Value: 4, Usage: "concurrent fetches for --urls"},
					&cli.StringFlag{Name: "format", Value: "yaml", Usage: "output format: yaml or json"},
				},
			},
			{
				Name:   "watch",
				Usage:  "open Chrome and watch for checkout and confirmation pages",
				Action: watch.WatchAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "start page", Required: true},
					&cli.BoolFlag{Name: "headless", Usage: "run Chrome without a window and print results"},
					&cli.DurationFlag{Name: "timeout", Value: 30 * time.Minute, Usage: "stop watching after this long"},
				},
			},
			{
				Name:   "serve",
				Usage:  "run the HTTP API for the browser extension",
				Action: serve.ServeAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Value: ":8787", Usage: "listen address"},
				},
			},
			{
				Name:   "history",
				Usage:  "show the bank balance and recent purchases",
				Action: history.HistoryAction,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10, Usage: "number of purchases"},
					&cli.StringFlag{Name: "format", Usage: "yaml or json instead of a table"},
				},
			},
			{
				Name:  "budget",
				Usage: "show or set the monthly budget plan",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "print the saved plan",
						Action: budget.ShowAction,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "format", Usage: "yaml or json instead of a table"},
						},
					},
					{
						Name:   "set",
						Usage:  "save the plan; unset flags keep their value",
						Action: budget.SetAction,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "salary", Usage: "monthly take-home pay"},
							&cli.StringFlag{Name: "rent", Usage: "monthly rent"},
							&cli.StringFlag{Name: "loans", Usage: "monthly loan payments"},
							&cli.StringFlag{Name: "savings", Usage: "monthly savings goal"},
						},
					},
				},
			},
			{
				Name:  "db",
				Usage: "query stored analyses, purchase syncs and sessions",
				Subcommands: []*cli.Command{
					{
						Name:   "analyses",
						Usage:  "list recent checkout analyses",
						Action: db.AnalysesAction,
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "number of analyses"},
						},
					},
					{
						Name:      "analysis",
						Usage:     "show one analysis (default: latest)",
						ArgsUsage: "[id]",
						Action:    db.AnalysisAction,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "format", Usage: "yaml or json instead of text"},
						},
					},
					{
						Name:   "syncs",
						Usage:  "list purchases synced to the bank",
						Action: db.SyncsAction,
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "number of syncs"},
						},
					},
					{
						Name:   "sessions",
						Usage:  "list watch and serve sessions",
						Action: db.SessionsAction,
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "number of sessions"},
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
