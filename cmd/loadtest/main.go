// Command loadtest drives the batch endpoint of a running dispersiond with a
// fixed pool of synthetic requests and prints throughput and latency.
// Requests repeat across the pool, so with the Redis cache enabled the
// report also shows the cache hit rate.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"maps"
	"math/rand/v2"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/api"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion/batch"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Payloads    [][]byte
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	cacheHits     atomic.Int64
	mu            sync.Mutex
	latencies     []float64
	statusCodes   map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]float64, 0, 100000),
		statusCodes: make(map[int]int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, cacheHit bool, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, float64(duration))
	s.statusCodes[statusCode]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the dispersion service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	parts := flag.Int("parts", 50, "corpus parts per request")
	words := flag.Int("words", 100, "words per request")
	payloads := flag.Int("payloads", 20, "distinct requests in the pool")
	flag.Parse()

	pool, err := buildPayloads(*payloads, *parts, *words)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building payloads: %v\n", err)
		os.Exit(1)
	}
	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Payloads:    pool,
	}

	fmt.Println("=== Dispersion Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Requests:    %d unique, %d parts x %d words\n", len(pool), *parts, *words)
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

// buildPayloads generates n batch requests with Zipf-like word frequencies
// spread unevenly over the parts.
func buildPayloads(n, parts, words int) ([][]byte, error) {
	r := rand.New(rand.NewPCG(42, 1024))
	pool := make([][]byte, n)
	for i := range pool {
		sizes := make([]float64, parts)
		for j := range sizes {
			sizes[j] = float64(500 + r.IntN(5000))
		}
		req := api.BatchRequest{Sizes: sizes, Words: make([]batch.WordInput, words)}
		for w := range req.Words {
			rate := 0.05 / float64(w+1)
			freqs := make([]float64, parts)
			for j, size := range sizes {
				if r.Float64() < 0.7 {
					freqs[j] = float64(int(size * rate * 2 * r.Float64()))
				}
			}
			req.Words[w] = batch.WordInput{Word: fmt.Sprintf("w%d", w), Frequencies: freqs}
		}
		data, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}
		pool[i] = data
	}
	return pool, nil
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	endpoint := cfg.BaseURL + "/api/v1/dispersion/batch"
	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := workerID; ctx.Err() == nil; i++ {
				body := cfg.Payloads[i%len(cfg.Payloads)]
				start := time.Now()
				status, hit, err := post(ctx, client, endpoint, body)
				if ctx.Err() != nil {
					return
				}
				stats.RecordRequest(time.Since(start), status, hit, err)
			}
		}(w)
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func post(ctx context.Context, client *http.Client, url string, body []byte) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, false, nil
	}
	var out struct {
		CacheHit bool `json:"cache_hit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return resp.StatusCode, false, err
	}
	return resp.StatusCode, out.CacheHit, nil
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}
	if success > 0 {
		fmt.Printf("Cache Hit Rate:  %.2f%%\n", float64(stats.cacheHits.Load())/float64(success)*100)
	}

	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	codes := make(map[int]int64, len(stats.statusCodes))
	for code, n := range stats.statusCodes {
		codes[code] = n
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		mean, std := stat.PopMeanStdDev(latencies, nil)

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", time.Duration(latencies[0]))
		fmt.Printf("Avg:    %s\n", time.Duration(mean))
		for _, p := range []float64{0.50, 0.90, 0.95, 0.99} {
			q := stat.Quantile(p, stat.Empirical, latencies, nil)
			fmt.Printf("P%-2.0f:    %s\n", p*100, time.Duration(q))
		}
		fmt.Printf("Max:    %s\n", time.Duration(latencies[len(latencies)-1]))
		fmt.Printf("StdDev: %s\n", time.Duration(std))
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	for _, code := range slices.Sorted(maps.Keys(codes)) {
		fmt.Printf("  %d: %d\n", code, codes[code])
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}
