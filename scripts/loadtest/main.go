// Loadtest drives concurrent lookups against the currency exchange service
// and reports throughput, latency percentiles and the per-pair distribution.
//
// Usage:
//
//	go run ./scripts/loadtest -url http://localhost:8000 -pairs USD_INR,EUR_INR -concurrency 10 -requests 1000
//	go run ./scripts/loadtest -seed -out summary.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type pairStats struct {
	Count     int32
	Success   int32
	Failure   int32
	Latencies []time.Duration
}

type pairSummary struct {
	Total   int32   `json:"total"`
	Success int32   `json:"success"`
	Failure int32   `json:"failure"`
	P50     float64 `json:"p50_ms"`
	P90     float64 `json:"p90_ms"`
	P95     float64 `json:"p95_ms"`
	P99     float64 `json:"p99_ms"`
}

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8000", "Service base URL")
		pairsFlag   = flag.String("pairs", "USD_INR,EUR_INR,AUD_INR", "Comma separated FROM_TO pairs to look up")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		requests    = flag.Int("requests", 100, "Total number of requests to send")
		timeout     = flag.Duration("timeout", 10*time.Second, "Per-request timeout")
		seed        = flag.Bool("seed", false, "Create the pairs before the run")
		outJSON     = flag.String("out", "", "Write JSON summary to this file (optional)")
		verbose     = flag.Bool("v", false, "Verbose per-request logging to stdout")
	)
	flag.Parse()

	pairs := strings.Split(*pairsFlag, ",")
	client := &http.Client{Timeout: *timeout}

	if *seed {
		for i, pair := range pairs {
			from, to, _ := strings.Cut(pair, "_")
			body := fmt.Sprintf(`{"from":%q,"to":%q,"conversionMultiple":%d}`, from, to, 60+i)
			resp, err := client.Post(*baseURL+"/currency-exchange", "application/json", strings.NewReader(body))
			if err != nil {
				fmt.Fprintf(os.Stderr, "seed %s: %v\n", pair, err)
				os.Exit(1)
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			fmt.Printf("seeded %s -> %d\n", pair, resp.StatusCode)
		}
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	var total, success, failure int32

	stats := make(map[string]*pairStats)
	var statsMu sync.Mutex

	var allLatencies []time.Duration
	var latMu sync.Mutex

	statusCodes := make(map[int]int32)
	var statusMu sync.Mutex

	testStart := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobs {
				atomic.AddInt32(&total, 1)
				pair := pairs[idx%len(pairs)]
				from, to, _ := strings.Cut(pair, "_")

				start := time.Now()
				resp, err := client.Get(fmt.Sprintf("%s/currency-exchange/from/%s/to/%s", *baseURL, from, to))
				dur := time.Since(start)

				latMu.Lock()
				allLatencies = append(allLatencies, dur)
				latMu.Unlock()

				if err != nil {
					atomic.AddInt32(&failure, 1)
					if *verbose {
						fmt.Printf("[%d] idx=%d pair=%s error=%v\n", workerID, idx, pair, err)
					}
					continue
				}

				statusMu.Lock()
				statusCodes[resp.StatusCode]++
				statusMu.Unlock()

				ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
				if ok {
					atomic.AddInt32(&success, 1)
				} else {
					atomic.AddInt32(&failure, 1)
				}

				statsMu.Lock()
				ps, found := stats[pair]
				if !found {
					ps = &pairStats{}
					stats[pair] = ps
				}
				ps.Count++
				if ok {
					ps.Success++
				} else {
					ps.Failure++
				}
				ps.Latencies = append(ps.Latencies, dur)
				statsMu.Unlock()

				if *verbose {
					fmt.Printf("[%d] idx=%d pair=%s status=%d dur=%v\n", workerID, idx, pair, resp.StatusCode, dur)
				}

				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
		}(i)
	}

	go func() {
		for i := 0; i < *requests; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	wg.Wait()
	totalDuration := time.Since(testStart)
	throughput := float64(total) / totalDuration.Seconds()

	fmt.Println("--- Load Test Summary ---")
	fmt.Printf("Target: %s\n", *baseURL)
	fmt.Printf("Requests: %d  Concurrency: %d\n", *requests, *concurrency)
	fmt.Printf("Total sent: %d  Success: %d  Failure: %d\n", total, success, failure)
	fmt.Printf("Duration: %v  Throughput: %.2f req/s\n", totalDuration, throughput)

	fmt.Println("\nStatus codes:")
	var scKeys []int
	for k := range statusCodes {
		scKeys = append(scKeys, k)
	}
	sort.Ints(scKeys)
	for _, k := range scKeys {
		fmt.Printf("  %d -> %d\n", k, statusCodes[k])
	}

	fmt.Println("\nPairs:")
	summaries := make(map[string]pairSummary, len(stats))
	var pairKeys []string
	for k := range stats {
		pairKeys = append(pairKeys, k)
	}
	sort.Strings(pairKeys)
	for _, k := range pairKeys {
		ps := stats[k]
		sorted := sortedCopy(ps.Latencies)
		s := pairSummary{
			Total:   ps.Count,
			Success: ps.Success,
			Failure: ps.Failure,
			P50:     ms(percentile(sorted, 0.50)),
			P90:     ms(percentile(sorted, 0.90)),
			P95:     ms(percentile(sorted, 0.95)),
			P99:     ms(percentile(sorted, 0.99)),
		}
		summaries[k] = s
		fmt.Printf("  %s -> total=%d success=%d failure=%d p50=%.2fms p99=%.2fms\n",
			k, s.Total, s.Success, s.Failure, s.P50, s.P99)
	}

	if len(allLatencies) > 0 {
		tmp := sortedCopy(allLatencies)
		var sum time.Duration
		for _, d := range tmp {
			sum += d
		}
		fmt.Println("\nOverall latencies:")
		fmt.Printf("  samples=%d min=%v avg=%v max=%v p50=%v p90=%v p95=%v p99=%v\n",
			len(tmp), tmp[0], sum/time.Duration(len(tmp)), tmp[len(tmp)-1],
			percentile(tmp, 0.50), percentile(tmp, 0.90), percentile(tmp, 0.95), percentile(tmp, 0.99))
	}

	fmt.Printf("\nGOMAXPROCS=%d  NumGoroutine=%d\n", runtime.GOMAXPROCS(0), runtime.NumGoroutine())

	if *outJSON != "" {
		report := map[string]any{
			"target":         *baseURL,
			"requests":       *requests,
			"concurrency":    *concurrency,
			"total_sent":     total,
			"success":        success,
			"failure":        failure,
			"duration_ms":    totalDuration.Milliseconds(),
			"throughput_rps": throughput,
			"pairs":          summaries,
		}

		f, err := os.Create(*outJSON)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create json file: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		enc.Encode(report)
		f.Close()
		fmt.Printf("\nWrote JSON summary to %s\n", *outJSON)
	}

	if failure > 0 {
		os.Exit(2)
	}
}

func sortedCopy(in []time.Duration) []time.Duration {
	out := make([]time.Duration, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func percentile(sorted []time.Duration, pct float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*pct)]
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
