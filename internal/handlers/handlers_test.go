package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/loomlabs/loom"
	"github.com/loomlabs/loom/collab"
	"github.com/loomlabs/loom/internal/api"
	"github.com/loomlabs/loom/internal/handlers"
	"github.com/loomlabs/loom/llm"
	"github.com/loomlabs/loom/storage"
	"github.com/loomlabs/loom/usage"
)

func newTestServer(t *testing.T, reporter handlers.UsageReporter) *httptest.Server {
	t.Helper()

	calls := 0
	caller := llm.CallerFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		calls++
		return &llm.Response{
			Content: fmt.Sprintf("reply %d", calls),
			Model:   req.Model,
			Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}, nil
	})

	engine, err := loom.New(&loom.Config{
		Store:  storage.NewMemoryStore(),
		Caller: caller,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(engine.Close)

	pipeline, err := collab.New(collab.Config{
		Caller:  caller,
		Catalog: engine.Catalog(),
	})
	if err != nil {
		t.Fatalf("collab.New: %v", err)
	}

	h := handlers.NewHandler(engine, pipeline, reporter)
	srv := httptest.NewServer(api.NewRouter(zerolog.Nop(), h, nil))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestThreadLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)

	var thread storage.Thread
	status := doJSON(t, http.MethodPost, srv.URL+"/api/threads", map[string]string{
		"title":         "support chat",
		"system_prompt": "be helpful",
	}, &thread)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}
	if thread.Title != "support chat" || thread.UserID != loom.DefaultUserID {
		t.Errorf("thread = %+v", thread)
	}

	var fetched storage.Thread
	if status := doJSON(t, http.MethodGet, srv.URL+"/api/threads/"+thread.ID.String(), nil, &fetched); status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	if fetched.ID != thread.ID {
		t.Errorf("fetched id = %s", fetched.ID)
	}

	var updated storage.Thread
	status = doJSON(t, http.MethodPatch, srv.URL+"/api/threads/"+thread.ID.String(), map[string]string{
		"title": "renamed",
	}, &updated)
	if status != http.StatusOK || updated.Title != "renamed" {
		t.Errorf("patch status = %d, title = %q", status, updated.Title)
	}

	var list struct {
		Threads []storage.Thread `json:"threads"`
		Total   int              `json:"total"`
	}
	if status := doJSON(t, http.MethodGet, srv.URL+"/api/threads", nil, &list); status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if list.Total != 1 || len(list.Threads) != 1 {
		t.Errorf("list = %+v", list)
	}
}

func TestThreadNotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	status := doJSON(t, http.MethodGet, srv.URL+"/api/threads/00000000-0000-0000-0000-000000000001", nil, nil)
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}

	// Malformed IDs are a 400, not a 404.
	if status := doJSON(t, http.MethodGet, srv.URL+"/api/threads/not-a-uuid", nil, nil); status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestSendAndListMessages(t *testing.T) {
	srv := newTestServer(t, nil)

	var thread storage.Thread
	doJSON(t, http.MethodPost, srv.URL+"/api/threads", map[string]string{}, &thread)
	base := srv.URL + "/api/threads/" + thread.ID.String()

	var sent struct {
		Message     *storage.Message `json:"message"`
		UserMessage *storage.Message `json:"user_message"`
	}
	status := doJSON(t, http.MethodPost, base+"/messages", map[string]string{"content": "hello"}, &sent)
	if status != http.StatusOK {
		t.Fatalf("send status = %d", status)
	}
	if sent.UserMessage.Seq != 1 || sent.Message.Seq != 2 {
		t.Errorf("seqs = (%d, %d)", sent.UserMessage.Seq, sent.Message.Seq)
	}
	if sent.Message.Content != "reply 1" {
		t.Errorf("assistant content = %q", sent.Message.Content)
	}

	if status := doJSON(t, http.MethodPost, base+"/messages", map[string]string{"content": "  "}, nil); status != http.StatusBadRequest {
		t.Errorf("empty content status = %d, want 400", status)
	}
	if status := doJSON(t, http.MethodPost, base+"/messages", map[string]string{"content": "x", "model": "nope"}, nil); status != http.StatusBadRequest {
		t.Errorf("unknown model status = %d, want 400", status)
	}

	var list struct {
		Messages []storage.Message `json:"messages"`
		Count    int               `json:"count"`
	}
	if status := doJSON(t, http.MethodGet, base+"/messages", nil, &list); status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if list.Count != 2 {
		t.Errorf("count = %d, want 2", list.Count)
	}
}

func TestGenerateAndListSummaries(t *testing.T) {
	srv := newTestServer(t, nil)

	var thread storage.Thread
	doJSON(t, http.MethodPost, srv.URL+"/api/threads", map[string]string{}, &thread)
	base := srv.URL + "/api/threads/" + thread.ID.String()

	// Nothing to summarize yet.
	if status := doJSON(t, http.MethodPost, base+"/summaries", nil, nil); status != http.StatusConflict {
		t.Errorf("status = %d, want 409", status)
	}
	if status := doJSON(t, http.MethodGet, base+"/summaries/latest", nil, nil); status != http.StatusNotFound {
		t.Errorf("latest status = %d, want 404", status)
	}

	doJSON(t, http.MethodPost, base+"/messages", map[string]string{"content": "hello"}, nil)

	var sum storage.Summary
	if status := doJSON(t, http.MethodPost, base+"/summaries", nil, &sum); status != http.StatusCreated {
		t.Fatalf("generate status = %d", status)
	}
	if sum.FromSeq != 1 || sum.ToSeq != 2 {
		t.Errorf("summary range = (%d, %d)", sum.FromSeq, sum.ToSeq)
	}

	var list struct {
		Summaries []storage.Summary `json:"summaries"`
		Count     int               `json:"count"`
	}
	if status := doJSON(t, http.MethodGet, base+"/summaries", nil, &list); status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if list.Count != 1 {
		t.Errorf("count = %d, want 1", list.Count)
	}

	var latest storage.Summary
	if status := doJSON(t, http.MethodGet, base+"/summaries/latest", nil, &latest); status != http.StatusOK {
		t.Fatalf("latest status = %d", status)
	}
	if latest.ID != sum.ID {
		t.Errorf("latest id = %s, want %s", latest.ID, sum.ID)
	}
}

func TestCollaborate(t *testing.T) {
	srv := newTestServer(t, nil)

	var res collab.Result
	status := doJSON(t, http.MethodPost, srv.URL+"/api/collaborate", map[string]interface{}{
		"query": "What is machine learning?",
	}, &res)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if res.FinalResponse == "" || res.ReviewerRan {
		t.Errorf("result = %+v, want a final response with no reviewer", res)
	}

	if status := doJSON(t, http.MethodPost, srv.URL+"/api/collaborate", map[string]string{}, nil); status != http.StatusBadRequest {
		t.Errorf("missing query status = %d, want 400", status)
	}
}

func TestAgentEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	var list struct {
		Agents []collab.AgentConfig `json:"agents"`
	}
	if status := doJSON(t, http.MethodGet, srv.URL+"/api/agents", nil, &list); status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if len(list.Agents) != 3 {
		t.Fatalf("agents = %d, want 3", len(list.Agents))
	}

	var updated collab.AgentConfig
	status := doJSON(t, http.MethodPut, srv.URL+"/api/agents/writer", map[string]string{
		"model": "openai/gpt-4-turbo",
	}, &updated)
	if status != http.StatusOK || updated.Model != "openai/gpt-4-turbo" {
		t.Errorf("update status = %d, model = %q", status, updated.Model)
	}

	if status := doJSON(t, http.MethodPut, srv.URL+"/api/agents/writer", map[string]string{"model": "nope"}, nil); status != http.StatusBadRequest {
		t.Errorf("unknown model status = %d, want 400", status)
	}
	if status := doJSON(t, http.MethodPut, srv.URL+"/api/agents/editor", map[string]string{"model": "openai/gpt-4-turbo"}, nil); status != http.StatusNotFound {
		t.Errorf("unknown role status = %d, want 404", status)
	}
}

type stubReporter struct {
	report *usage.Report
}

func (s *stubReporter) Summary(ctx context.Context, since time.Time) (*usage.Report, error) {
	s.report.Since = since
	return s.report, nil
}

func TestUsageSummary(t *testing.T) {
	srv := newTestServer(t, nil)
	if status := doJSON(t, http.MethodGet, srv.URL+"/api/usage/summary", nil, nil); status != http.StatusServiceUnavailable {
		t.Errorf("status without reporter = %d, want 503", status)
	}

	srv = newTestServer(t, &stubReporter{report: &usage.Report{Calls: 7}})
	var report usage.Report
	if status := doJSON(t, http.MethodGet, srv.URL+"/api/usage/summary", nil, &report); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if report.Calls != 7 {
		t.Errorf("calls = %d, want 7", report.Calls)
	}
}

func TestListModels(t *testing.T) {
	srv := newTestServer(t, nil)

	var list struct {
		Count int `json:"count"`
	}
	if status := doJSON(t, http.MethodGet, srv.URL+"/api/models", nil, &list); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if list.Count != 3 {
		t.Errorf("count = %d, want 3", list.Count)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	var body map[string]interface{}
	if status := doJSON(t, http.MethodGet, srv.URL+"/health", nil, &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}
