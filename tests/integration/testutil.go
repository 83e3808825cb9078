//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/macrosnap/macrosnap/internal/analysis"
	"github.com/macrosnap/macrosnap/internal/api"
	"github.com/macrosnap/macrosnap/internal/auth"
	"github.com/macrosnap/macrosnap/internal/ledger"
	"github.com/macrosnap/macrosnap/internal/meals"
	"github.com/macrosnap/macrosnap/internal/nutrition"
	"github.com/macrosnap/macrosnap/internal/provider"
	"github.com/macrosnap/macrosnap/internal/users"
)

// The daily quota the test environment is wired with. Small enough that
// a single test can exhaust it.
const testDailyLimit = 5

const testMonthlyCeiling = "1000"

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	ImageServer *httptest.Server

	// Scripted inference backends, shared across tests. Reset them with
	// ResetProviders before use.
	Primary   *provider.MockAdapter
	Secondary *provider.MockAdapter
}

var testEnv *TestEnv

// ResetProviders restores both mock backends to a confident success.
func (env *TestEnv) ResetProviders() {
	env.Primary.Estimate = &nutrition.MacroEstimate{
		Calories: 520, Protein: 38.5, Carbs: 45.0, Fat: 18.5,
		Confidence: nutrition.ConfidenceMedium, Description: "grilled chicken with rice",
	}
	env.Primary.Err = nil
	env.Secondary.Estimate = &nutrition.MacroEstimate{
		Calories: 540, Protein: 40.0, Carbs: 44.0, Fat: 19.0,
		Confidence: nutrition.ConfidenceHigh, Description: "grilled chicken with rice",
	}
	env.Secondary.Err = nil
}

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		testEnv.ResetProviders()
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "macrosnap_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/macrosnap_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	m, err := migrate.New(
		fmt.Sprintf("file://%s", getMigrationsPath()),
		dsn,
	)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// A stand-in CDN serving meal photos for the reachability probe.
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(imageServer.Close)

	// Auth
	jwtManager := auth.NewJWTManager("test-access-secret-32-chars-long!!", "test-refresh-secret-32-chars-lng!!", 15*time.Minute, 7*24*time.Hour)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// Ledger
	ledgerRepo := ledger.NewRepository(pool)
	ledgerSvc := ledger.NewService(ledgerRepo, map[string]decimal.Decimal{
		"gemini": decimal.RequireFromString("0.002"),
		"openai": decimal.RequireFromString("0.01"),
	})
	ceiling := decimal.RequireFromString(testMonthlyCeiling)
	ledgerHandler := ledger.NewHandler(ledgerSvc, testDailyLimit, ceiling)

	// Meals
	mealRepo := meals.NewRepository(pool)
	mealHandler := meals.NewHandler(mealRepo)

	// Analysis with scripted backends
	primary := provider.NewMockAdapter("gemini", nil, nil)
	secondary := provider.NewMockAdapter("openai", nil, nil)

	gate := analysis.NewGate(ledgerSvc, analysis.GateConfig{
		DailyCallLimit: testDailyLimit,
		MonthlyCeiling: ceiling,
		ProbeTimeout:   5 * time.Second,
	})
	orch := analysis.NewOrchestrator(gate, primary, secondary, secondary, ledgerSvc, mealRepo, nil)
	analysisHandler := analysis.NewHandler(orch)

	router := api.NewRouter(pool, redisClient, nil, api.RouterConfig{}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		Analyze:   analysisHandler.Analyze,
		ListMeals: mealHandler.List,
		GetUsage:  ledgerHandler.GetUsage,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		ImageServer: imageServer,
		Primary:     primary,
		Secondary:   secondary,
	}
	testEnv.ResetProviders()

	return testEnv
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

var uniqueCounter atomic.Int64

func uniqueID() int64 {
	return uniqueCounter.Add(1)*1000 + time.Now().UnixNano()%1000
}

func RegisterUser(t *testing.T, env *TestEnv, email, password string) map[string]any {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: status %d", resp.StatusCode)
	}
	return ParseResponse(t, resp)
}

func LoginUser(t *testing.T, env *TestEnv, email, password string) string {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	return result["access_token"].(string)
}

// NewTestUser registers a fresh user and returns its id and token.
func NewTestUser(t *testing.T, env *TestEnv) (userID, token string) {
	t.Helper()
	email := fmt.Sprintf("user-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token = LoginUser(t, env, email, "password123")

	var id string
	err := env.Pool.QueryRow(context.Background(),
		`SELECT id FROM users WHERE email = $1`, email).Scan(&id)
	if err != nil {
		t.Fatalf("looking up test user: %v", err)
	}
	return id, token
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
