package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/wagervault/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		Env:                "development",
		LogLevel:           "error",
		DicePlatformFeeBps: config.DefaultDicePlatformFeeBps,
		DiceExpiry:         config.DefaultDiceExpiry,
		BetPlatformFeeBps:  config.DefaultBetPlatformFeeBps,
		ArbiterFeeBps:      config.DefaultArbiterFeeBps,
		BetExpiry:          config.DefaultBetExpiry,
		BetMinDecision:     0,
		SweepInterval:      config.DefaultSweepInterval,
		RateLimitRPM:       10000,
	}
}

// newTestServer creates a server with in-memory storage
func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

func doJSON(s *Server, method, path, body, apiKey string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	s.router.ServeHTTP(w, req)
	return w
}

// registerPlayer registers an address and returns its API key
func registerPlayer(t *testing.T, s *Server, addr string) string {
	t.Helper()
	w := doJSON(s, "POST", "/v1/players", `{"address":"`+addr+`","name":"test key"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("Registration failed: %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	key, _ := resp["apiKey"].(string)
	if key == "" {
		t.Fatal("Expected apiKey in registration response")
	}
	return key
}

// availableBalance extracts balance.available from a balance response body
func availableBalance(t *testing.T, body []byte) float64 {
	t.Helper()
	var resp struct {
		Balance struct {
			Available float64 `json:"available"`
		} `json:"balance"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("Failed to parse balance: %v", err)
	}
	return resp.Balance.Available
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["status"] != "alive" {
		t.Errorf("Expected status 'alive', got %v", resp["status"])
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	// Server hasn't called Run() so ready is false
	w := doJSON(s, "GET", "/readyz", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}

	s.ready.Store(true)
	w = doJSON(s, "GET", "/readyz", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 after ready, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestGameRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	gameRoutes := map[string]bool{
		"GET:/v1/games":               false,
		"GET:/v1/games/:id":           false,
		"POST:/v1/games":              false,
		"POST:/v1/games/:id/join":     false,
		"POST:/v1/games/:id/roll":     false,
		"POST:/v1/games/:id/finalize": false,
		"POST:/v1/games/:id/claim":    false,
		"POST:/v1/games/:id/withdraw": false,
	}

	for _, route := range routes {
		key := route.Method + ":" + route.Path
		if _, ok := gameRoutes[key]; ok {
			gameRoutes[key] = true
		}
	}

	for route, found := range gameRoutes {
		if !found {
			t.Errorf("Game route %s not registered", route)
		}
	}
}

func TestBetRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	betRoutes := map[string]bool{
		"GET:/v1/bets":                          false,
		"GET:/v1/bets/:id":                      false,
		"GET:/v1/bets/:id/group-bets":           false,
		"POST:/v1/bets":                         false,
		"POST:/v1/bets/:id/declare-winner":      false,
		"POST:/v1/bets/:id/group-bets":          false,
		"POST:/v1/group-bets/:groupBetId/claim": false,
		"GET:/v1/arbiters/leaderboard":          false,
		"GET:/v1/arbiters/:address":             false,
	}

	for _, route := range routes {
		key := route.Method + ":" + route.Path
		if _, ok := betRoutes[key]; ok {
			betRoutes[key] = true
		}
	}

	for route, found := range betRoutes {
		if !found {
			t.Errorf("Bet route %s not registered", route)
		}
	}
}

// ---------------------------------------------------------------------------
// Registration and auth tests
// ---------------------------------------------------------------------------

func TestPlayerRegistration(t *testing.T) {
	s := newTestServer(t)

	key := registerPlayer(t, s, "0xaaaa000000000000000000000000000000000001")
	if !strings.HasPrefix(key, "sk_") {
		t.Errorf("Expected sk_ prefixed key, got %q", key)
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "POST", "/v1/games", `{"gameId":1,"entryFee":100,"maxPlayers":4}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}

	w = doJSON(s, "POST", "/v1/games", `{"gameId":1,"entryFee":100,"maxPlayers":4}`, "sk_bogus")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with bad key, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// End-to-end flow over HTTP
// ---------------------------------------------------------------------------

func TestDepositAndCreateGameFlow(t *testing.T) {
	s := newTestServer(t)

	addr := "0xaaaa000000000000000000000000000000000001"
	key := registerPlayer(t, s, addr)

	w := doJSON(s, "POST", "/v1/balances/"+addr+"/deposit", `{"amount":1000}`, key)
	if w.Code != http.StatusOK {
		t.Fatalf("Deposit failed: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(s, "GET", "/v1/balances/"+addr, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Balance query failed: %d", w.Code)
	}
	if got := availableBalance(t, w.Body.Bytes()); got != 1000 {
		t.Errorf("Expected balance 1000, got %v", got)
	}

	w = doJSON(s, "POST", "/v1/games", `{"gameId":7,"entryFee":100,"maxPlayers":4}`, key)
	if w.Code != http.StatusCreated {
		t.Fatalf("Create game failed: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(s, "GET", "/v1/games/7", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for created game, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTwoPartyBetFlow(t *testing.T) {
	s := newTestServer(t)

	alice := "0xaaaa000000000000000000000000000000000001"
	bob := "0xbbbb000000000000000000000000000000000002"
	judge := "0xcccc000000000000000000000000000000000003"

	aliceKey := registerPlayer(t, s, alice)
	bobKey := registerPlayer(t, s, bob)
	judgeKey := registerPlayer(t, s, judge)

	for addr, key := range map[string]string{alice: aliceKey, bob: bobKey} {
		w := doJSON(s, "POST", "/v1/balances/"+addr+"/deposit", `{"amount":500}`, key)
		if w.Code != http.StatusOK {
			t.Fatalf("Deposit for %s failed: %d", addr, w.Code)
		}
	}

	body := `{"betId":1,"type":"two_party","counterparty":"` + bob + `","arbiter":"` + judge + `","amount":100,"description":"rain tomorrow"}`
	w := doJSON(s, "POST", "/v1/bets", body, aliceKey)
	if w.Code != http.StatusCreated {
		t.Fatalf("Create bet failed: %d: %s", w.Code, w.Body.String())
	}

	for _, key := range []string{aliceKey, bobKey} {
		w = doJSON(s, "POST", "/v1/bets/1/deposit", "", key)
		if w.Code != http.StatusOK {
			t.Fatalf("Bet deposit failed: %d: %s", w.Code, w.Body.String())
		}
	}

	w = doJSON(s, "POST", "/v1/bets/1/declare-winner", `{"winner":"`+alice+`"}`, judgeKey)
	if w.Code != http.StatusOK {
		t.Fatalf("Declare winner failed: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(s, "POST", "/v1/bets/1/withdraw", "", aliceKey)
	if w.Code != http.StatusOK {
		t.Fatalf("Withdraw winnings failed: %d: %s", w.Code, w.Body.String())
	}

	// Pool 200, 20% platform fee and 2% arbiter fee leave 156 for the winner.
	w = doJSON(s, "GET", "/v1/balances/"+alice, "", "")
	if got := availableBalance(t, w.Body.Bytes()); got != 400+156 {
		t.Errorf("Expected winner balance 556, got %v", got)
	}

	w = doJSON(s, "GET", "/v1/arbiters/"+judge, "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected arbiter stats after ruling, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// 404 test
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/v1/nonexistent", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
