package loadgen

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config drives one synthetic traffic run against a live server.
type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
}

type Result struct {
	TotalRequests int
	Failures      int
	StatusClasses map[string]int
}

type target struct {
	method string
	path   string
	body   string
}

// Run fires requests at the configured rate until the duration elapses.
// The "auth" profile exercises only credential endpoints; "mixed" also
// touches health and protected routes, so the gate sees both outcomes.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.RPS <= 0 || cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("rps and concurrency must be positive")
	}
	profile := normalizeProfile(cfg.Profile)
	targets := targetsForProfile(profile)
	rng := rand.New(rand.NewSource(cfg.Seed))

	client := &http.Client{Timeout: 5 * time.Second}
	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	jobs := make(chan target)
	var mu sync.Mutex
	result := &Result{StatusClasses: map[string]int{}}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tgt := range jobs {
				status, err := fire(runCtx, client, cfg.BaseURL, tgt)
				mu.Lock()
				result.TotalRequests++
				if err != nil {
					result.Failures++
				} else {
					result.StatusClasses[classifyStatusClass(status)]++
				}
				mu.Unlock()
			}
		}()
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
feed:
	for {
		select {
		case <-runCtx.Done():
			break feed
		case <-ticker.C:
			select {
			case jobs <- targets[rng.Intn(len(targets))]:
			case <-runCtx.Done():
				break feed
			}
		}
	}
	close(jobs)
	wg.Wait()
	return result, nil
}

func fire(ctx context.Context, client *http.Client, baseURL string, tgt target) (int, error) {
	var body *bytes.Reader
	if tgt.body != "" {
		body = bytes.NewReader([]byte(tgt.body))
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, tgt.method, strings.TrimRight(baseURL, "/")+tgt.path, body)
	if err != nil {
		return 0, err
	}
	if tgt.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func targetsForProfile(profile string) []target {
	login := target{method: http.MethodPost, path: "/api/v1/auth/login", body: `{"email":"loadgen@example.com","password":"not-a-real-password"}`}
	refresh := target{method: http.MethodPost, path: "/api/v1/auth/refresh", body: `{"refresh_token":"loadgen-bogus-token"}`}
	if profile == "auth" {
		return []target{login, refresh}
	}
	return []target{
		login,
		refresh,
		{method: http.MethodGet, path: "/health/live"},
		{method: http.MethodGet, path: "/health/ready"},
		{method: http.MethodGet, path: "/api/v1/me/"},
	}
}

func normalizeProfile(profile string) string {
	profile = strings.ToLower(strings.TrimSpace(profile))
	if profile == "" {
		return "mixed"
	}
	return profile
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}
