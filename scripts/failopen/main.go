// Failopen verifies that lookups keep succeeding while the cache store is
// down, and that the shared cache circuit reports it.
//
// Usage:
//
//	go run ./scripts/failopen -url http://localhost:8000 -redis-port 6379
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8000", "Service base URL")
		redisPort = flag.Int("redis-port", 6379, "Redis port to kill for testing")
		requests  = flag.Int("requests", 20, "Requests per phase")
		skipKill  = flag.Bool("skip-kill", false, "Skip the kill redis phase")
	)
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	lookup := *baseURL + "/currency-exchange/from/USD/to/INR"

	fmt.Println(colorCyan + "━━━ CACHE FAIL-OPEN TEST ━━━" + colorReset)
	fmt.Println()

	fmt.Println(colorBlue + "━━━ PHASE 1: Normal Operation ━━━" + colorReset)
	status, _ := send(client, http.MethodPost, *baseURL+"/currency-exchange",
		`{"from":"USD","to":"INR","conversionMultiple":65}`)
	fmt.Printf("  Seed USD_INR: Status=%d\n", status)

	if ok := lookups(client, lookup, *requests); ok == 0 {
		fmt.Println(colorRed + "  ✗ No lookups succeeded! Is the service running?" + colorReset)
		os.Exit(1)
	}
	printCircuit(client, *baseURL)
	fmt.Println()

	if !*skipKill {
		fmt.Println(colorBlue + "━━━ PHASE 2: Cache Store Failure ━━━" + colorReset)
		fmt.Printf("Killing redis on port %d...\n", *redisPort)
		if err := killPort(*redisPort); err != nil {
			fmt.Printf(colorYellow+"  Warning: Could not kill redis: %v\n"+colorReset, err)
		} else {
			fmt.Printf(colorGreen+"  ✓ Redis on port %d killed\n"+colorReset, *redisPort)
		}
		time.Sleep(500 * time.Millisecond)

		ok := lookups(client, lookup, *requests)
		fmt.Printf("\n  Results: %d/%d successful\n", ok, *requests)
		if ok == *requests {
			fmt.Println(colorGreen + "  ✓ All lookups succeeded without the cache" + colorReset)
		} else {
			fmt.Println(colorRed + "  ✗ Some lookups failed while the cache was down" + colorReset)
		}
		fmt.Println()
	}

	fmt.Println(colorBlue + "━━━ PHASE 3: Circuit & Health ━━━" + colorReset)
	printCircuit(client, *baseURL)
	if health, err := getJSON(client, *baseURL+"/health"); err != nil {
		fmt.Printf(colorYellow+"  Could not fetch health: %v\n"+colorReset, err)
	} else {
		fmt.Printf("  Health: %v\n", health["status"])
	}
	fmt.Println()

	fmt.Println("Restart redis and watch the circuit close after the retry interval.")
}

func lookups(client *http.Client, url string, n int) int {
	ok := 0
	for i := 0; i < n; i++ {
		start := time.Now()
		status, err := send(client, http.MethodGet, url, "")
		if err != nil {
			fmt.Printf(colorRed+"  Request %d: ERROR - %v\n"+colorReset, i+1, err)
			continue
		}
		if status == http.StatusOK {
			ok++
		} else {
			fmt.Printf(colorYellow+"  Request %d: Status=%d (took %v)\n"+colorReset, i+1, status, time.Since(start))
		}
	}
	return ok
}

func printCircuit(client *http.Client, baseURL string) {
	m, err := getJSON(client, baseURL+"/metrics")
	if err != nil {
		fmt.Printf(colorYellow+"  Could not fetch metrics: %v\n"+colorReset, err)
		return
	}

	state, _ := m["circuit"].(string)
	color := colorGreen
	if state != "CLOSED" {
		color = colorRed
	}
	fmt.Printf("  Circuit: %s%s%s\n", color, state, colorReset)

	if caches, ok := m["caches"].(map[string]any); ok {
		for name, data := range caches {
			if cm, ok := data.(map[string]any); ok {
				fmt.Printf("    %s → hits=%v misses=%v failures=%v rejected=%v\n",
					name, cm["hits"], cm["misses"], cm["failures"], cm["rejected"])
			}
		}
	}
}

func send(client *http.Client, method, url, body string) (int, error) {
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		return 0, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func killPort(port int) error {
	output, err := exec.Command("lsof", "-ti", fmt.Sprintf(":%d", port)).Output()
	if err != nil {
		return fmt.Errorf("no process found on port %d", port)
	}

	pid := strings.TrimSpace(string(output))
	if pid == "" {
		return fmt.Errorf("no process found on port %d", port)
	}

	return exec.Command("kill", pid).Run()
}

func getJSON(client *http.Client, url string) (map[string]any, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	return out, nil
}
