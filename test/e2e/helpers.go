//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/satriadhikara/dock/internal/api/handlers"
	dockopenai "github.com/satriadhikara/dock/internal/openai"
	"github.com/satriadhikara/dock/internal/repository"
	"github.com/satriadhikara/dock/internal/server"
	"github.com/satriadhikara/dock/internal/service"
	"github.com/satriadhikara/dock/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const embeddingDims = 768

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	FakeOpenAI   *httptest.Server
	ServerURL    string
	ServerCloser func()
	AuthSvc      *service.AuthService
	SessionToken string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with a pgvector container,
// a fake OpenAI backend and an in-process dock server.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	fakeOpenAI := newFakeOpenAIServer(t)

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser, authSvc := startServer(t, pool, fakeOpenAI.URL+"/v1", port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		FakeOpenAI:   fakeOpenAI,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		AuthSvc:      authSvc,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.FakeOpenAI != nil {
		e.FakeOpenAI.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// Bootstrap creates a user and a session for testing
func (e *E2ETestEnv) Bootstrap() {
	e.CreateUser("user-e2e", "e2e@example.com")

	session, err := e.AuthSvc.CreateSession(e.Ctx, "user-e2e", service.DefaultSessionTTL)
	if err != nil {
		e.T.Fatalf("failed to create session: %v", err)
	}
	e.SessionToken = session.Token
}

// CreateUser inserts a user row
func (e *E2ETestEnv) CreateUser(id, email string) {
	_, err := e.Pool.Exec(e.Ctx,
		`INSERT INTO "user" (id, name, email) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		id, id, email)
	if err != nil {
		e.T.Fatalf("failed to insert user: %v", err)
	}
}

// CreateContract inserts a contract row with JSON content
func (e *E2ETestEnv) CreateContract(id, ownerID, name, status string, content map[string]interface{}) {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		e.T.Fatalf("failed to marshal contract content: %v", err)
	}
	_, err = e.Pool.Exec(e.Ctx,
		`INSERT INTO contract (id, owner_id, name, status, type, content) VALUES ($1, $2, $3, $4, 'BuiltIn', $5)`,
		id, ownerID, name, status, contentJSON)
	if err != nil {
		e.T.Fatalf("failed to insert contract: %v", err)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, token string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, token)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, token string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, token)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, token string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, token)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, token string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// StreamChat posts a chat request and returns the raw SSE body
func (e *E2ETestEnv) StreamChat(question, token string) (*http.Response, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"messages": []map[string]string{{"role": "user", "content": question}},
	})

	req, err := http.NewRequest("POST", e.ServerURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	return (&http.Client{}).Do(req)
}

// startServer starts the HTTP server wired to the fake OpenAI backend
func startServer(t *testing.T, pool *pgxpool.Pool, openAIBaseURL string, port int) (string, func(), *service.AuthService) {
	contractRepo := repository.NewContractRepository(pool)
	chunkRepo := repository.NewKnowledgeChunkRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(sessionRepo, uuidGen, "")

	embeddingClient := dockopenai.NewClientWithConfig(dockopenai.Config{
		APIKey:              "test-key",
		BaseURL:             openAIBaseURL,
		EmbeddingDimensions: embeddingDims,
	})
	chatModel := dockopenai.NewChatClient(dockopenai.ChatConfig{
		APIKey:  "test-key",
		BaseURL: openAIBaseURL,
		Model:   "gpt-4o-mini",
	})

	// Low threshold: the fake embedding is bag-of-words so related texts
	// score well below real model similarities.
	const minSimilarity = 0.05

	retrievalSvc := service.NewRetrievalService(chunkRepo, embeddingClient)
	knowledgeSvc := service.NewKnowledgeService(chunkRepo, embeddingClient)
	ingestSvc := service.NewIngestService(contractRepo, chunkRepo, embeddingClient)
	copilotSvc := service.NewCopilotServiceWithConfig(chatModel, retrievalSvc, knowledgeSvc, service.CopilotConfig{
		MaxSteps:      5,
		TopK:          8,
		MinSimilarity: minSimilarity,
	})

	cfg := server.RouterConfig{
		OwnerResolver:    authSvc,
		ChatHandler:      handlers.NewChatHandler(copilotSvc),
		KnowledgeHandler: handlers.NewKnowledgeHandler(ingestSvc, knowledgeSvc),
		SearchHandler:    handlers.NewSearchHandler(retrievalSvc, 8, minSimilarity),
	}

	router := server.NewRouter(cfg)
	addr := fmt.Sprintf(":%d", port)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, authSvc
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// newFakeOpenAIServer serves deterministic embeddings and a canned streamed
// chat completion so E2E tests run without a real OpenAI account.
func newFakeOpenAIServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type embeddingData struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]embeddingData, len(req.Input))
		for i, text := range req.Input {
			data[i] = embeddingData{
				Object:    "embedding",
				Index:     i,
				Embedding: fakeEmbed(text),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  "text-embedding-3-small",
		})
	})

	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		chunks := []string{"The payment terms ", "are net 30 days."}
		for _, chunk := range chunks {
			payload, _ := json.Marshal(map[string]interface{}{
				"id":     "chatcmpl-e2e",
				"object": "chat.completion.chunk",
				"choices": []map[string]interface{}{
					{"index": 0, "delta": map[string]string{"content": chunk}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}

		final, _ := json.Marshal(map[string]interface{}{
			"id":     "chatcmpl-e2e",
			"object": "chat.completion.chunk",
			"choices": []map[string]interface{}{
				{"index": 0, "delta": map[string]string{}, "finish_reason": "stop"},
			},
		})
		fmt.Fprintf(w, "data: %s\n\n", final)
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	})

	return httptest.NewServer(mux)
}

// fakeEmbed maps text to a normalized bag-of-words vector so overlapping
// vocabulary yields high cosine similarity.
func fakeEmbed(text string) []float32 {
	v := make([]float64, embeddingDims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,:;!?\"'")))
		v[h.Sum32()%embeddingDims]++
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}

	out := make([]float32, embeddingDims)
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}
