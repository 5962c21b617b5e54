// Package mapreduce merges keyword counts gathered from several pages so a
// batch inspection can report what the carts have in common.
package mapreduce

import (
	"fmt"
	"sort"

	"github.com/dtnitsch/second-look/pkg/analytics"
)

// Map generates a word frequency map for a single page's visible text.
func Map(text string, a *analytics.Analytics) map[string]int {
	return a.WordFrequency(text)
}

// Reduce aggregates a slice of word frequency maps into a single map.
func Reduce(intermediate []map[string]int) map[string]int {
	finalResults := make(map[string]int)

	for _, counts := range intermediate {
		for word, count := range counts {
			finalResults[word] += count
		}
	}

	return finalResults
}

// TopKeywords returns the top n keywords formatted as "word:count", highest
// count first and ties broken alphabetically.
func TopKeywords(wordCounts map[string]int, n int) []string {
	type kv struct {
		Key   string
		Value int
	}

	ss := make([]kv, 0, len(wordCounts))
	for k, v := range wordCounts {
		ss = append(ss, kv{k, v})
	}

	sort.Slice(ss, func(i, j int) bool {
		if ss[i].Value != ss[j].Value {
			return ss[i].Value > ss[j].Value
		}
		return ss[i].Key < ss[j].Key
	})

	limit := n
	if len(ss) < n {
		limit = len(ss)
	}
	if limit < 0 {
		limit = 0
	}

	keywords := make([]string, limit)
	for i := 0; i < limit; i++ {
		keywords[i] = fmt.Sprintf("%s:%d", ss[i].Key, ss[i].Value)
	}

	return keywords
}
