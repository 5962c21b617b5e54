package inspect

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/analytics"
	"github.com/dtnitsch/second-look/pkg/dom"
	"github.com/dtnitsch/second-look/pkg/mapreduce"
	"github.com/dtnitsch/second-look/pkg/pipeline"
)

// Job is one URL queued for batch inspection.
type Job struct {
	Index int
	URL   string
}

// Result is the outcome of one Job.
type Result struct {
	URL        string               `json:"url" yaml:"url"`
	Inspection *pipeline.Inspection `json:"inspection,omitempty" yaml:"inspection,omitempty"`
	Error      string               `json:"error,omitempty" yaml:"error,omitempty"`

	index      int
	wordCounts map[string]int
}

// BatchOutput is what inspect prints for --urls.
type BatchOutput struct {
	Results  []Result `json:"results" yaml:"results"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Failed   int      `json:"failed" yaml:"failed"`
}

// loader matches LoadPage so tests can serve pages from memory.
type loader func(ctx context.Context, rawURL, file string) (*models.Page, dom.Document, error)

const batchKeywords = 15

// runBatch inspects urls with a fixed pool of workers. Results keep the
// order of urls; keyword counts from every page are merged at the end.
func runBatch(ctx context.Context, logger *slog.Logger, p *pipeline.Pipeline, load loader, urls []string, workers int) BatchOutput {
	if workers < 1 {
		workers = 1
	}
	if workers > len(urls) {
		workers = len(urls)
	}
	a := &analytics.Analytics{}

	logger.Info("starting batch inspection", "url_count", len(urls), "workers", workers)
	var wg sync.WaitGroup
	jobs := make(chan Job, len(urls))
	results := make(chan Result, len(urls))

	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go worker(ctx, w, logger, p, a, load, &wg, jobs, results)
	}

	for i, u := range urls {
		jobs <- Job{Index: i, URL: u}
	}
	close(jobs)

	wg.Wait()
	close(results)
	logger.Info("all inspect workers finished")

	out := BatchOutput{Results: make([]Result, len(urls))}
	intermediate := make([]map[string]int, 0, len(urls))
	for r := range results {
		out.Results[r.index] = r
		if r.Error != "" {
			out.Failed++
		}
		if r.wordCounts != nil {
			intermediate = append(intermediate, r.wordCounts)
		}
	}
	out.Keywords = mapreduce.TopKeywords(mapreduce.Reduce(intermediate), batchKeywords)
	return out
}

func worker(ctx context.Context, id int, logger *slog.Logger, p *pipeline.Pipeline, a *analytics.Analytics, load loader, wg *sync.WaitGroup, jobs <-chan Job, results chan<- Result) {
	defer wg.Done()
	for job := range jobs {
		result := Result{URL: job.URL, index: job.Index}
		if err := ctx.Err(); err != nil {
			result.Error = err.Error()
			results <- result
			continue
		}

		_, doc, err := load(ctx, job.URL, "")
		if err != nil {
			logger.Warn("inspect failed", "worker_id", id, "url", job.URL, "error", err)
			result.Error = err.Error()
			results <- result
			continue
		}

		in := p.Inspect(doc)
		result.URL = doc.URL()
		result.Inspection = &in
		result.wordCounts = mapreduce.Map(doc.VisibleText(), a)
		logger.Debug("inspected", "worker_id", id, "url", result.URL, "state", in.State)
		results <- result
	}
}
