package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/converter"
)

var fallbackQueries = []string{
	"milk water",
	"sugar",
	"americano cappuccino",
	"the cat sat on the mat",
	"inverted index",
}

type runConfig struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	limit       int
	batchSize   int
	queries     []string
}

type stats struct {
	total       atomic.Int64
	success     atomic.Int64
	failed      atomic.Int64
	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func (s *stats) record(d time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.failed.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statusCodes[status]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limit := flag.Int("limit", 5, "results per query")
	batchSize := flag.Int("batch", 0, "send queries in batches of this size to /api/v1/search/batch (0 = single queries)")
	requests := flag.String("requests", "", "requests.json to take queries from")
	flag.Parse()

	queries := fallbackQueries
	if *requests != "" {
		loaded, err := converter.ReadRequests(*requests)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading queries: %v\n", err)
			os.Exit(1)
		}
		if len(loaded) > 0 {
			queries = loaded
		}
	}
	cfg := runConfig{
		baseURL:     *baseURL,
		concurrency: max(*concurrency, 1),
		duration:    *duration,
		limit:       *limit,
		batchSize:   *batchSize,
		queries:     queries,
	}

	fmt.Println("=== Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.baseURL)
	fmt.Printf("Concurrency: %d\n", cfg.concurrency)
	fmt.Printf("Duration:    %s\n", cfg.duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.queries))
	if cfg.batchSize > 0 {
		fmt.Printf("Batch size:  %d\n", cfg.batchSize)
	}
	fmt.Println()

	s := run(cfg)
	if !report(s, cfg.duration) {
		os.Exit(1)
	}
}

func run(cfg runConfig) *stats {
	s := &stats{statusCodes: make(map[int]int64)}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.concurrency * 2,
			MaxIdleConnsPerHost: cfg.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := range cfg.concurrency {
		wg.Go(func() {
			next := w
			for ctx.Err() == nil {
				req, err := buildRequest(ctx, cfg, next)
				if err != nil {
					panic(err)
				}
				next += max(cfg.batchSize, 1)

				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						s.record(elapsed, 0, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				s.record(elapsed, resp.StatusCode, nil)
			}
		})
	}
	wg.Wait()
	return s
}

func buildRequest(ctx context.Context, cfg runConfig, offset int) (*http.Request, error) {
	if cfg.batchSize <= 0 {
		query := cfg.queries[offset%len(cfg.queries)]
		target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", cfg.baseURL, url.QueryEscape(query), cfg.limit)
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}
	batch := make([]string, cfg.batchSize)
	for i := range batch {
		batch[i] = cfg.queries[(offset+i)%len(cfg.queries)]
	}
	body, err := json.Marshal(map[string]any{"requests": batch, "limit": cfg.limit})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/api/v1/search/batch", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func report(s *stats, duration time.Duration) bool {
	total := s.total.Load()
	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", s.success.Load())
	fmt.Printf("Errors:          %d\n", s.failed.Load())
	if total == 0 {
		fmt.Println("\nWARNING: No requests completed. Is the service running?")
		return false
	}
	fmt.Printf("Error Rate:      %.2f%%\n", float64(s.failed.Load())/float64(total)*100)
	fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())

	s.mu.Lock()
	latencies := slices.Clone(s.latencies)
	codes := make([]int, 0, len(s.statusCodes))
	for code := range s.statusCodes {
		codes = append(codes, code)
	}
	s.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		var sq float64
		for _, l := range latencies {
			diff := float64(l - avg)
			sq += diff * diff
		}
		fmt.Println("\n=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Printf("P%-5.0f %s\n", p, percentile(latencies, p))
		}
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
		fmt.Printf("StdDev: %s\n", time.Duration(math.Sqrt(sq/float64(len(latencies)))))
	}

	fmt.Println("\n=== Status Codes ===")
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, s.statusCodes[code])
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
