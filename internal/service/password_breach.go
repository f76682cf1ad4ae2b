package service

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type NoopBreachChecker struct{}

func NewNoopBreachChecker() *NoopBreachChecker { return &NoopBreachChecker{} }

func (c *NoopBreachChecker) IsCompromised(context.Context, string) (bool, error) {
	return false, nil
}

// StaticBreachChecker holds an in-memory corpus; used in tests and as a
// seed list for air-gapped deployments.
type StaticBreachChecker struct {
	corpus map[string]struct{}
}

func NewStaticBreachChecker(passwords []string) *StaticBreachChecker {
	corpus := make(map[string]struct{}, len(passwords))
	for _, p := range passwords {
		corpus[p] = struct{}{}
	}
	return &StaticBreachChecker{corpus: corpus}
}

func (c *StaticBreachChecker) IsCompromised(_ context.Context, password string) (bool, error) {
	_, ok := c.corpus[password]
	return ok, nil
}

// RangeBreachChecker queries a pwnedpasswords-style range endpoint. Only the
// first five hex digits of the SHA-1 leave the process; the full digest is
// matched against the returned suffix list locally.
type RangeBreachChecker struct {
	baseURL string
	client  *http.Client
}

func NewRangeBreachChecker(baseURL string) *RangeBreachChecker {
	return &RangeBreachChecker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *RangeBreachChecker) IsCompromised(ctx context.Context, password string) (bool, error) {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/range/"+prefix, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("breach corpus status: %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		candidate, _, found := strings.Cut(line, ":")
		if found && strings.EqualFold(candidate, suffix) {
			return true, nil
		}
	}
	return false, scanner.Err()
}
