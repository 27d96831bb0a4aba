// Command scanstorm fires concurrent scans of one credential payload at a
// running gatecheck server and reports the outcome histogram. Exactly one
// success is expected for a fresh credential.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	httphandler "github.com/ericfisherdev/gatecheck/internal/adapter/driving/http"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8080", "gatecheck base URL")
	payload := flag.String("payload", "", "credential payload to scan (required)")
	workers := flag.Int("n", 50, "number of concurrent scans")
	timeout := flag.Duration("timeout", 10*time.Second, "overall deadline")
	flag.Parse()

	if *payload == "" || *workers < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	counts := storm(ctx, http.DefaultClient, *addr+"/api/v1/scan", *payload, *workers)
	elapsed := time.Since(start)

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("scans:   %d\nelapsed: %s\n", *workers, elapsed)
	for _, k := range keys {
		fmt.Printf("  %-24s %d\n", k, counts[k])
	}

	if counts["success"] > 1 {
		fmt.Printf("FAIL: %d scans succeeded for one credential\n", counts["success"])
		os.Exit(1)
	}
}

// storm posts payload to url from n goroutines released together and
// returns how many responses carried each status. Transport failures count
// under "error", non-JSON answers under "http_<code>".
func storm(ctx context.Context, client *http.Client, url, payload string, n int) map[string]int {
	body, _ := json.Marshal(httphandler.ScanRequest{Payload: payload})

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts = make(map[string]int)
		gate   = make(chan struct{})
	)

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			status := scanOnce(ctx, client, url, body)

			mu.Lock()
			counts[status]++
			mu.Unlock()
		}()
	}

	close(gate)
	wg.Wait()
	return counts
}

func scanOnce(ctx context.Context, client *http.Client, url string, body []byte) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "error"
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "error"
	}
	defer func() { _ = resp.Body.Close() }()

	var out httphandler.CheckInResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Status == "" {
		return fmt.Sprintf("http_%d", resp.StatusCode)
	}
	return out.Status
}
