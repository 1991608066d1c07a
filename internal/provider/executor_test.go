package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

func noBackoff(int) time.Duration { return 0 }

func newTestExecutor(opts ...Option) *Executor {
	base := []Option{
		WithMinReadTimeout(100 * time.Millisecond),
		WithBackoff(noBackoff),
	}
	return NewExecutor(append(base, opts...)...)
}

func testConfig(endpoint string) ModelConfig {
	cfg := validOllamaConfig()
	cfg.Endpoint = endpoint
	cfg.Timeout = time.Millisecond
	return cfg
}

// recorder captures the decoded JSON body of every generate request.
type recorder struct {
	mu     sync.Mutex
	bodies []map[string]interface{}
	tags   int32
}

func (r *recorder) record(t *testing.T, req *http.Request) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
	r.mu.Lock()
	r.bodies = append(r.bodies, body)
	r.mu.Unlock()
	return body
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func (r *recorder) models() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.bodies))
	for _, b := range r.bodies {
		out = append(out, b["model"].(string))
	}
	return out
}

// waitForAbort blocks until the client gives up on the request.
func waitForAbort(r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	select {
	case <-r.Context().Done():
	case <-time.After(5 * time.Second):
	}
}

func writeTags(w http.ResponseWriter, names ...string) {
	models := make([]map[string]string, 0, len(names))
	for _, n := range names {
		models = append(models, map[string]string{"name": n})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"models": models})
}

func TestExecute_OllamaGenerateRequest(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		assert.Empty(t, r.Header.Get("Authorization"))
		rec.record(t, r)
		_, _ = w.Write([]byte(`{"model":"qwen3:8b","response":"LGTM","done":true}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL + "/")
	cfg.Temperature = 0.2
	cfg.MaxTokens = 64

	resp, err := newTestExecutor().Execute(context.Background(), "review this", cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"qwen3:8b","response":"LGTM","done":true}`, string(resp.Body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "qwen3:8b", resp.Model)
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, []string{"qwen3:8b"}, resp.ModelsTried)

	require.Equal(t, 1, rec.count())
	body := rec.bodies[0]
	assert.Equal(t, "qwen3:8b", body["model"])
	assert.Equal(t, "review this", body["prompt"])
	assert.Equal(t, false, body["stream"])
	opts := body["options"].(map[string]interface{})
	assert.Equal(t, 0.2, opts["temperature"])
	assert.Equal(t, 0.9, opts["top_p"])
	assert.Equal(t, float64(40), opts["top_k"])
	assert.Equal(t, float64(64), opts["num_predict"])
}

func TestExecute_UserAgent(t *testing.T) {
	agents := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	_, err := newTestExecutor().Execute(context.Background(), "p", testConfig(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "aireview", <-agents)

	_, err = newTestExecutor(WithUserAgent("aireview/1.2.0")).Execute(context.Background(), "p", testConfig(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "aireview/1.2.0", <-agents)
}

func TestExecute_OllamaChatPath(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		rec.record(t, r)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"ok"}}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIPath = "api/chat"

	_, err := newTestExecutor().Execute(context.Background(), "hi", cfg)
	require.NoError(t, err)

	body := rec.bodies[0]
	assert.NotContains(t, body, "prompt")
	msgs := body["messages"].([]interface{})
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]interface{}{"role": "user", "content": "hi"}, msgs[0])
}

func TestExecute_OpenRouterRequest(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-or-test", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Title"))
		rec.record(t, r)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"fine"}}]}`))
	}))
	defer srv.Close()

	cfg := ModelConfig{
		Provider:    KindOpenRouter,
		ModelName:   "qwen/qwen3-coder:free",
		Endpoint:    srv.URL,
		APIPath:     "/api/v1/chat/completions",
		Temperature: 1.1,
		MaxTokens:   512,
		Timeout:     time.Second,
		RetryCount:  1,
		APIKey:      "sk-or-test",
	}

	_, err := newTestExecutor().Execute(context.Background(), "prompt text", cfg)
	require.NoError(t, err)

	body := rec.bodies[0]
	assert.Equal(t, "qwen/qwen3-coder:free", body["model"])
	assert.Equal(t, 1.1, body["temperature"])
	assert.Equal(t, float64(512), body["max_tokens"])
	msgs := body["messages"].([]interface{})
	assert.Equal(t, map[string]interface{}{"role": "user", "content": "prompt text"}, msgs[0])
}

func TestExecute_RetryBound(t *testing.T) {
	for retry, want := range map[int]int{0: 1, 1: 1, 2: 2, 4: 4} {
		rec := &recorder{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec.record(t, r)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"model crashed"}`))
		}))

		cfg := testConfig(srv.URL)
		cfg.RetryCount = retry

		_, err := newTestExecutor().Execute(context.Background(), "p", cfg)
		srv.Close()

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrHTTPStatus)
		assert.Equal(t, want, rec.count(), "retry count %d", retry)

		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
		assert.JSONEq(t, `{"error":"model crashed"}`, string(pe.Body))
	}
}

func TestExecute_SucceedsAfterTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":"third time"}`))
	}))
	defer srv.Close()

	var retries []Attempt
	exec := newTestExecutor(OnRetry(func(a Attempt) { retries = append(retries, a) }))

	resp, err := exec.Execute(context.Background(), "p", testConfig(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
	assert.Len(t, resp.ModelsTried, 3)
	require.Len(t, retries, 2)
	assert.Equal(t, 1, retries[0].Number)
	assert.Equal(t, 2, retries[1].Number)
	assert.ErrorIs(t, retries[0].Err, ErrHTTPStatus)
}

func TestExecute_ReadTimeoutFloor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		_, _ = w.Write([]byte(`{"response":"slow but fine"}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = time.Millisecond
	cfg.RetryCount = 1

	resp, err := newTestExecutor(WithMinReadTimeout(2 * time.Second)).Execute(context.Background(), "p", cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Attempts)
}

func TestExecute_TimeoutFailoverCyclesThroughModels(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			atomic.AddInt32(&rec.tags, 1)
			writeTags(w, "c", "a", "b")
			return
		}
		rec.record(t, r)
		waitForAbort(r)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.ModelName = "a"
	cfg.RetryCount = 5
	cfg.Failover = true

	_, err := newTestExecutor(WithMinReadTimeout(50*time.Millisecond)).Execute(context.Background(), "p", cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	models := rec.models()
	assert.Equal(t, []string{"a", "b", "c", "a", "b"}, models)
	for i := 1; i < len(models); i++ {
		assert.NotEqual(t, models[i-1], models[i])
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&rec.tags), "model list is fetched once per call")
}

func TestExecute_FailoverReportsModelUsed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			writeTags(w, "big", "small")
			return
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["model"] == "big" {
			waitForAbort(r)
			return
		}
		_, _ = w.Write([]byte(`{"response":"from small"}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.ModelName = "big"
	cfg.Failover = true

	resp, err := newTestExecutor(WithMinReadTimeout(50*time.Millisecond)).Execute(context.Background(), "p", cfg)
	require.NoError(t, err)
	assert.Equal(t, "small", resp.Model)
	assert.Equal(t, []string{"big", "small"}, resp.ModelsTried)
	assert.Equal(t, "big", cfg.ModelName, "caller config is not mutated")
}

func TestExecute_FailoverDisabled(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			atomic.AddInt32(&rec.tags, 1)
			writeTags(w, "a", "b")
			return
		}
		rec.record(t, r)
		waitForAbort(r)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.ModelName = "a"
	cfg.RetryCount = 2
	cfg.Failover = false

	_, err := newTestExecutor(WithMinReadTimeout(50*time.Millisecond)).Execute(context.Background(), "p", cfg)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, []string{"a", "a"}, rec.models())
	assert.Zero(t, atomic.LoadInt32(&rec.tags))
}

func TestExecute_SingleModelKeepsModel(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			writeTags(w, "only")
			return
		}
		rec.record(t, r)
		waitForAbort(r)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.ModelName = "only"
	cfg.RetryCount = 2
	cfg.Failover = true

	_, err := newTestExecutor(WithMinReadTimeout(50*time.Millisecond)).Execute(context.Background(), "p", cfg)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, []string{"only", "only"}, rec.models())
}

func TestExecute_ConnectionRefusedRetriesWithoutFailover(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var models []string
	exec := newTestExecutor(OnAttempt(func(a Attempt) { models = append(models, a.Model) }))

	cfg := testConfig(url)
	cfg.RetryCount = 3
	cfg.Failover = true

	_, err := exec.Execute(context.Background(), "p", cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionRefused)
	assert.Equal(t, []string{"qwen3:8b", "qwen3:8b", "qwen3:8b"}, models)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, url+"/api/generate", pe.URL)
}

func TestExecute_InvalidConfigMakesNoRequest(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(t, r)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxTokens = 0

	_, err := newTestExecutor().Execute(context.Background(), "p", cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Zero(t, rec.count())
}

func TestExecute_CancelledBeforeFirstAttempt(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(t, r)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestExecutor().Execute(ctx, "p", testConfig(srv.URL))
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, rec.count())
}

func TestExecute_CancelDuringBackoff(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(t, r)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backoff := func(attempt int) time.Duration {
		if attempt == 1 {
			return time.Millisecond
		}
		return time.Minute
	}
	exec := newTestExecutor(
		WithBackoff(backoff),
		OnRetry(func(a Attempt) {
			if a.Number == 2 {
				time.AfterFunc(20*time.Millisecond, cancel)
			}
		}),
	)

	cfg := testConfig(srv.URL)
	cfg.RetryCount = 3

	start := time.Now()
	_, err := exec.Execute(ctx, "p", cfg)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 2, rec.count(), "no third attempt after cancellation")
	assert.Less(t, elapsed, 5*time.Second)
}

func TestExecute_CancelAbortsInFlightRequest(t *testing.T) {
	aborted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the server only notices a closed connection once the body is read
		_, _ = io.ReadAll(r.Body)
		<-r.Context().Done()
		close(aborted)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	cfg := testConfig(srv.URL)
	start := time.Now()
	_, err := newTestExecutor(WithMinReadTimeout(time.Minute)).Execute(ctx, "p", cfg)

	assert.ErrorIs(t, err, ErrCancelled)
	assert.Less(t, time.Since(start), 5*time.Second)
	select {
	case <-aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw the request being aborted")
	}
}

func TestExecute_ConcurrentCallsKeepTheirOwnTimeouts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	exec := newTestExecutor(WithMinReadTimeout(50 * time.Millisecond))

	patient := testConfig(srv.URL)
	patient.Timeout = 2 * time.Second
	patient.RetryCount = 1

	hasty := testConfig(srv.URL)
	hasty.Timeout = 50 * time.Millisecond
	hasty.RetryCount = 1

	var (
		wg                    sync.WaitGroup
		patientErr, hastyErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, patientErr = exec.Execute(context.Background(), "p", patient)
	}()
	go func() {
		defer wg.Done()
		_, hastyErr = exec.Execute(context.Background(), "p", hasty)
	}()
	wg.Wait()

	assert.NoError(t, patientErr)
	assert.ErrorIs(t, hastyErr, ErrTimeout)
}

func TestPing(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(t, r)
		_, _ = w.Write([]byte(`{"response":"OK"}`))
	}))
	defer srv.Close()

	resp, err := newTestExecutor().Ping(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Attempts)

	body := rec.bodies[0]
	assert.Equal(t, pingPrompt, body["prompt"])
	assert.Equal(t, float64(pingMaxTokens), body["options"].(map[string]interface{})["num_predict"])
}

func TestLinearBackoff(t *testing.T) {
	b := LinearBackoff(2 * time.Second)
	assert.Equal(t, 2*time.Second, b(1))
	assert.Equal(t, 4*time.Second, b(2))
	assert.Equal(t, 6*time.Second, b(3))
}
