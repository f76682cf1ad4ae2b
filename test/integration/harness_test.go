package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/storekit/storefront-backend/internal/config"
	"github.com/storekit/storefront-backend/internal/domain"
	"github.com/storekit/storefront-backend/internal/health"
	"github.com/storekit/storefront-backend/internal/http/handler"
	"github.com/storekit/storefront-backend/internal/http/router"
	"github.com/storekit/storefront-backend/internal/i18n"
	"github.com/storekit/storefront-backend/internal/repository"
	"github.com/storekit/storefront-backend/internal/security"
	"github.com/storekit/storefront-backend/internal/service"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testPepper = "integration-test-pepper"
)

var fastHashParams = security.Argon2Params{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

type testStack struct {
	server    *httptest.Server
	client    *http.Client
	db        *gorm.DB
	redis     *miniredis.Miniredis
	customers repository.CustomerRepository
	tokens    repository.RefreshTokenRepository
	readiness *health.ProbeRunner
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

// newTestStack boots the whole service on sqlite and miniredis behind an
// httptest server. Rate limits are disabled so tests can hammer endpoints.
func newTestStack(t *testing.T) *testStack {
	t.Helper()

	// The busy timeout keeps concurrent writers queueing instead of failing
	// outright on the shared in-memory database.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection serializes writers; sqlite has no row locks to lean on.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&domain.Customer{}, &domain.Role{}, &domain.RefreshToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	redisServer := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	customers := repository.NewCustomerRepository(db)
	roles := repository.NewRoleRepository(db)
	tokens := repository.NewRefreshTokenRepository(db)
	if err := roles.Seed([]domain.Role{{Name: domain.TagCustomer}, {Name: domain.TagAdmin}, {Name: domain.TagSupport}}); err != nil {
		t.Fatalf("seed roles: %v", err)
	}

	cfg := config.Default()
	cfg.JWTAccessSecret = testSecret
	cfg.RefreshTokenPepper = testPepper
	cfg.AccessTokenTTL = time.Minute
	cfg.APIRateLimitRPM = 0
	cfg.AuthRateLimitRPM = 0

	codec := security.NewTokenCodec(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.AccessTokenTTL)
	hasher := security.NewPasswordHasher(fastHashParams)
	tokenSvc := service.NewTokenService(codec, tokens, nil, testPepper, cfg.RefreshTokenTTL)
	verifier := service.NewCredentialVerifier(customers, hasher)
	auth := service.NewAuthService(verifier, tokenSvc, customers, roles, hasher, nil, nil)
	resolver := service.NewCachedTagResolver(
		service.NewRedisTagCacheStore(redisClient, "storefront"),
		service.NewRedisNegativeLookupCacheStore(redisClient, "storefront"),
		auth,
		cfg.TagCacheTTL,
	)
	sessions := service.NewSessionService(tokens, testPepper)

	messages, err := i18n.NewResolver(cfg.DefaultLocale)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}

	readiness := health.NewProbeRunner(2*time.Second, 0)
	readiness.Register(health.NewGormChecker(db))
	readiness.Register(health.NewRedisChecker(redisClient))

	h := router.New(router.Dependencies{
		Config:    cfg,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Codec:     codec,
		Resolver:  resolver,
		Auth:      handler.NewAuthHandler(auth, messages),
		Account:   handler.NewAccountHandler(customers, sessions, messages),
		Messages:  messages,
		Readiness: readiness,
	})

	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	return &testStack{
		server:    server,
		client:    server.Client(),
		db:        db,
		redis:     redisServer,
		customers: customers,
		tokens:    tokens,
		readiness: readiness,
	}
}

func (s *testStack) doJSON(t *testing.T, method, path string, body interface{}, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp, env
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (s *testStack) register(t *testing.T, email, password string) {
	t.Helper()
	resp, env := s.doJSON(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    email,
		"name":     "Integration Shopper",
		"password": password,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status=%d error=%+v", resp.StatusCode, env.Error)
	}
}

func (s *testStack) login(t *testing.T, email, password string) tokenPair {
	t.Helper()
	resp, env := s.doJSON(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status=%d error=%+v", resp.StatusCode, env.Error)
	}
	var pair tokenPair
	if err := json.Unmarshal(env.Data, &pair); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("login returned an incomplete token pair")
	}
	return pair
}

func bearer(pair tokenPair) map[string]string {
	return map[string]string{"Authorization": "Bearer " + pair.AccessToken}
}
