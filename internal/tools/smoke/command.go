package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/storekit/storefront-backend/internal/tools/common"
	"github.com/storekit/storefront-backend/internal/tools/loadgen"
	"github.com/storekit/storefront-backend/internal/tools/ui"
)

type options struct {
	baseURL string
	envFile string
	traffic bool
	ci      bool
}

// NewCommand returns the smoke subcommand. It drives a full account
// lifecycle against a running server: register, login, authenticated call,
// rotation, then replay of the rotated token to confirm the family dies.
func NewCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run an end-to-end auth lifecycle check against a live server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := common.LoadEnvFile(opts.envFile); err != nil {
				return err
			}
			if !cmd.Flags().Changed("base-url") {
				if v := os.Getenv("SMOKE_BASE_URL"); v != "" {
					opts.baseURL = v
				}
			}
			details, err := run(opts)
			if opts.ci {
				common.PrintCIResult(err == nil, "smoke", details, err)
			}
			if err != nil {
				os.Exit(4)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "API base URL (SMOKE_BASE_URL overrides the default)")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "env file to load before running")
	cmd.Flags().BoolVar(&opts.traffic, "traffic", false, "also generate background traffic during the check")
	cmd.Flags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	return cmd
}

func run(opts *options) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		return steps(ctx, opts)
	}
	return ui.Run("auth lifecycle smoke", func(ctx context.Context) ([]string, error) {
		return steps(ctx, opts)
	})
}

func steps(ctx context.Context, opts *options) ([]string, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	var details []string

	status, _, err := call(ctx, client, opts.baseURL, http.MethodGet, "/health/live", "", "")
	if err != nil || status != http.StatusOK {
		return details, fmt.Errorf("health check failed: status=%d err=%v", status, err)
	}
	details = append(details, "health: ok")

	if opts.traffic {
		go func() {
			_, _ = loadgen.Run(ctx, loadgen.Config{
				BaseURL:     opts.baseURL,
				Profile:     "mixed",
				Duration:    20 * time.Second,
				RPS:         10,
				Concurrency: 4,
				Seed:        time.Now().UnixNano(),
			})
		}()
		details = append(details, "background traffic: started")
	}

	email := fmt.Sprintf("smoke-%d@example.com", rand.Int63())
	password := fmt.Sprintf("Smoke!%d-long-enough", rand.Int63())
	registerBody := fmt.Sprintf(`{"email":%q,"name":"Smoke Test","password":%q}`, email, password)
	status, _, err = call(ctx, client, opts.baseURL, http.MethodPost, "/api/v1/auth/register", registerBody, "")
	if err != nil || status != http.StatusCreated {
		return details, fmt.Errorf("register failed: status=%d err=%v", status, err)
	}
	details = append(details, "register: "+email)

	loginBody := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	status, body, err := call(ctx, client, opts.baseURL, http.MethodPost, "/api/v1/auth/login", loginBody, "")
	if err != nil || status != http.StatusOK {
		return details, fmt.Errorf("login failed: status=%d err=%v", status, err)
	}
	access, refresh, err := extractTokens(body)
	if err != nil {
		return details, fmt.Errorf("login response: %w", err)
	}
	details = append(details, "login: tokens issued")

	status, _, err = call(ctx, client, opts.baseURL, http.MethodGet, "/api/v1/me/", "", access)
	if err != nil || status != http.StatusOK {
		return details, fmt.Errorf("authenticated call failed: status=%d err=%v", status, err)
	}
	details = append(details, "me: authorized")

	refreshBody := fmt.Sprintf(`{"refresh_token":%q}`, refresh)
	status, body, err = call(ctx, client, opts.baseURL, http.MethodPost, "/api/v1/auth/refresh", refreshBody, "")
	if err != nil || status != http.StatusOK {
		return details, fmt.Errorf("refresh failed: status=%d err=%v", status, err)
	}
	_, rotated, err := extractTokens(body)
	if err != nil {
		return details, fmt.Errorf("refresh response: %w", err)
	}
	details = append(details, "refresh: rotated")

	// Replay the spent token. Reuse detection must reject it and kill the
	// whole family, so the rotated token dies with it.
	status, _, err = call(ctx, client, opts.baseURL, http.MethodPost, "/api/v1/auth/refresh", refreshBody, "")
	if err != nil || status != http.StatusUnauthorized {
		return details, fmt.Errorf("replayed refresh not rejected: status=%d err=%v", status, err)
	}
	details = append(details, "replay: rejected")

	rotatedBody := fmt.Sprintf(`{"refresh_token":%q}`, rotated)
	status, _, err = call(ctx, client, opts.baseURL, http.MethodPost, "/api/v1/auth/refresh", rotatedBody, "")
	if err != nil || status != http.StatusUnauthorized {
		return details, fmt.Errorf("family not revoked after reuse: status=%d err=%v", status, err)
	}
	details = append(details, "family revocation: confirmed")

	return details, nil
}

func call(ctx context.Context, client *http.Client, baseURL, method, path, body, bearer string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(baseURL, "/")+path, bytes.NewReader([]byte(body)))
	if err != nil {
		return 0, nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.Bytes(), nil
}

func extractTokens(body []byte) (access, refresh string, err error) {
	var payload struct {
		Data struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", err
	}
	if payload.Data.AccessToken == "" || payload.Data.RefreshToken == "" {
		return "", "", fmt.Errorf("missing tokens in response")
	}
	return payload.Data.AccessToken, payload.Data.RefreshToken, nil
}
