package inspect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/detector"
	"github.com/dtnitsch/second-look/pkg/dom"
	"github.com/dtnitsch/second-look/pkg/extractor"
	"github.com/dtnitsch/second-look/pkg/pipeline"
)

func memoryLoader(pages map[string]string) loader {
	return func(_ context.Context, rawURL, _ string) (*models.Page, dom.Document, error) {
		html, ok := pages[rawURL]
		if !ok {
			return nil, nil, errors.New("not found")
		}
		doc, err := dom.ParseString(rawURL, html)
		return &models.Page{URL: rawURL}, doc, err
	}
}

func testPipeline(logger *slog.Logger) *pipeline.Pipeline {
	return pipeline.New(pipeline.Deps{
		Detector:  detector.New(detector.DefaultRules(), logger),
		Extractor: extractor.New(models.DetectionConfig{}, logger),
		Logger:    logger,
	})
}

func TestRunBatch(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pages := map[string]string{
		"https://a.example.com/done": thankYouPage,
		"https://b.example.com/done": `<html><body><h1>Thank you!</h1><p>Your order is confirmed. Headphones headphones.</p></body></html>`,
	}
	urls := []string{"https://a.example.com/done", "https://missing.example.com/", "https://b.example.com/done"}

	out := runBatch(context.Background(), logger, testPipeline(logger), memoryLoader(pages), urls, 4)

	if len(out.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(out.Results))
	}
	for i, u := range urls {
		if out.Results[i].URL != u {
			t.Errorf("Results[%d].URL = %q, want %q", i, out.Results[i].URL, u)
		}
	}
	if out.Failed != 1 || out.Results[1].Error == "" {
		t.Errorf("Failed = %d, Results[1] = %+v", out.Failed, out.Results[1])
	}
	if in := out.Results[0].Inspection; in == nil || in.State != models.StateConfirmation {
		t.Errorf("Results[0].Inspection = %+v, want confirmation", in)
	}
	if len(out.Keywords) == 0 || !strings.HasPrefix(out.Keywords[0], "headphones:") {
		t.Errorf("Keywords = %v, want headphones first", out.Keywords)
	}
}

func TestRunBatch_Cancelled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := runBatch(ctx, logger, testPipeline(logger), memoryLoader(nil), []string{"https://a.example.com/"}, 0)
	if out.Failed != 1 || out.Results[0].Error != context.Canceled.Error() {
		t.Errorf("out = %+v, want one cancelled result", out)
	}
}

func TestSplitURLs(t *testing.T) {
	got := splitURLs([]string{"https://a.example.com, https://b.example.com", " ", "https://c.example.com"})
	if strings.Join(got, "|") != "https://a.example.com|https://b.example.com|https://c.example.com" {
		t.Errorf("splitURLs() = %v", got)
	}
}
