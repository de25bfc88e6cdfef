// Command loadtest drives a running help search service with a mix of
// searches and typeahead suggestion requests and reports latency per
// endpoint.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var defaultQueries = []string{
	"bubble",
	"bubble types",
	"combo",
	"how to pop bubbles",
	"getting started",
	"scoring",
	"power ups",
	"account settings",
	"バブル",
	"コンボ",
	"xyzzy",
}

type endpointStats struct {
	requests    atomic.Int64
	failures    atomic.Int64
	zeroResults atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func newEndpointStats() *endpointStats {
	return &endpointStats{codes: make(map[int]int64)}
}

func (s *endpointStats) record(d time.Duration, code int, err error) {
	s.requests.Add(1)
	if err != nil || code >= 500 {
		s.failures.Add(1)
	}
	if err != nil {
		return
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[code]++
	s.mu.Unlock()
}

type runner struct {
	baseURL      string
	client       *http.Client
	queries      []string
	suggestRatio int
	search       *endpointStats
	suggest      *endpointStats
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the help search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	queryFile := flag.String("queries", "", "file with one query per line (defaults to a built-in list)")
	suggestRatio := flag.Int("suggest-every", 3, "send a suggestion request every n-th iteration (0 disables)")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		loaded, err := readQueries(*queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}

	r := &runner{
		baseURL: strings.TrimRight(*baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        *concurrency * 2,
				MaxIdleConnsPerHost: *concurrency * 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		queries:      queries,
		suggestRatio: *suggestRatio,
		search:       newEndpointStats(),
		suggest:      newEndpointStats(),
	}

	fmt.Println("=== Help Search Load Test ===")
	fmt.Printf("Target:      %s\n", r.baseURL)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Printf("Queries:     %d unique\n\n", len(queries))

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < *concurrency; w++ {
		g.Go(func() error {
			r.work(ctx, w)
			return nil
		})
	}
	_ = g.Wait()

	total := r.search.requests.Load() + r.suggest.requests.Load()
	report("search", r.search, *duration)
	report("suggestions", r.suggest, *duration)
	if total == 0 {
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func (r *runner) work(ctx context.Context, worker int) {
	for i := worker; ctx.Err() == nil; i++ {
		query := r.queries[i%len(r.queries)]
		if r.suggestRatio > 0 && i%r.suggestRatio == 0 {
			prefix := []rune(query)
			if len(prefix) > 3 {
				prefix = prefix[:3]
			}
			r.get(ctx, r.suggest, "/api/v1/suggestions?q="+url.QueryEscape(string(prefix)), nil)
			continue
		}
		var body struct {
			TotalCount int `json:"totalCount"`
		}
		if r.get(ctx, r.search, "/api/v1/search?limit=10&q="+url.QueryEscape(query), &body) && body.TotalCount == 0 {
			r.search.zeroResults.Add(1)
		}
	}
}

// get issues one request and reports whether out was decoded.
func (r *runner) get(ctx context.Context, stats *endpointStats, path string, out any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		stats.record(0, 0, err)
		return false
	}
	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			stats.record(time.Since(start), 0, err)
		}
		return false
	}
	defer resp.Body.Close()
	decoded := false
	if out != nil && resp.StatusCode == http.StatusOK {
		decoded = json.NewDecoder(resp.Body).Decode(out) == nil
	}
	stats.record(time.Since(start), resp.StatusCode, nil)
	return decoded
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var queries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" && !strings.HasPrefix(q, "#") {
			queries = append(queries, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%s contains no queries", path)
	}
	return queries, nil
}

func report(name string, s *endpointStats, duration time.Duration) {
	total := s.requests.Load()
	fmt.Printf("=== %s ===\n", name)
	fmt.Printf("Requests:      %d (%.2f/sec)\n", total, float64(total)/duration.Seconds())
	fmt.Printf("Failures:      %d\n", s.failures.Load())
	if name == "search" {
		fmt.Printf("Zero results:  %d\n", s.zeroResults.Load())
	}

	s.mu.Lock()
	latencies := append([]time.Duration(nil), s.latencies...)
	codes := make([]int, 0, len(s.codes))
	for code := range s.codes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  HTTP %d: %d\n", code, s.codes[code])
	}
	s.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		fmt.Printf("Latency p50=%s p90=%s p99=%s max=%s\n",
			percentile(latencies, 50),
			percentile(latencies, 90),
			percentile(latencies, 99),
			latencies[len(latencies)-1],
		)
	}
	fmt.Println()
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
