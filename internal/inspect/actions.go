package inspect

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dtnitsch/second-look/internal/common"
	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/detector"
	"github.com/dtnitsch/second-look/pkg/dom"
	"github.com/dtnitsch/second-look/pkg/extractor"
	"github.com/dtnitsch/second-look/pkg/fetcher"
	"github.com/dtnitsch/second-look/pkg/parser"
	"github.com/dtnitsch/second-look/pkg/pipeline"
	"github.com/urfave/cli/v2"
)

// Output is what inspect prints.
type Output struct {
	Page       *models.Page        `json:"page" yaml:"page"`
	Inspection pipeline.Inspection `json:"inspection" yaml:"inspection"`
}

// InspectAction classifies a single page, fetched or read from disk,
// without contacting the bank or the AI service.
func InspectAction(c *cli.Context) error {
	logger := common.NewLogger(c)
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	p := pipeline.New(pipeline.Deps{
		Detector:  detector.New(detector.DefaultRules().WithOverrides(cfg.Detection), logger),
		Extractor: extractor.New(cfg.Detection, logger),
		Logger:    logger,
	})

	if urls := splitURLs(c.StringSlice("urls")); len(urls) > 0 {
		out := runBatch(c.Context, logger, p, LoadPage, urls, c.Int("workers"))
		if err := common.WriteOutput(os.Stdout, out, c.String("format")); err != nil {
			return err
		}
		if out.Failed > 0 {
			return fmt.Errorf("%d of %d pages failed", out.Failed, len(urls))
		}
		return nil
	}

	rawURL, file := c.String("url"), c.String("file")
	if rawURL == "" && file == "" {
		return fmt.Errorf("one of --url, --urls or --file is required")
	}

	page, doc, err := LoadPage(c.Context, rawURL, file)
	if err != nil {
		return err
	}
	logger.Debug("page loaded", "url", page.URL, "title", page.Title)

	return common.WriteOutput(os.Stdout, Output{Page: page, Inspection: p.Inspect(doc)}, c.String("format"))
}

// LoadPage reads file when given, binding it to rawURL, and otherwise
// fetches rawURL.
func LoadPage(ctx context.Context, rawURL, file string) (*models.Page, dom.Document, error) {
	if rawURL != "" {
		cleaned, err := common.ValidateURL(rawURL)
		if err != nil && file == "" {
			return nil, nil, err
		}
		if err == nil {
			rawURL = cleaned
		}
	}

	var html string
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		html = string(data)
	} else {
		res, err := fetcher.NewFetcher().Fetch(ctx, rawURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
		}
		rawURL, html = res.FinalURL, string(res.Body)
	}

	p := &parser.Parser{}
	return p.Parse(models.ParseRequest{URL: rawURL, HTML: html})
}

// splitURLs accepts both repeated flags and comma-separated lists.
func splitURLs(values []string) []string {
	var urls []string
	for _, v := range values {
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}
