package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/moodrelay/internal/api"
	"github.com/kalambet/moodrelay/internal/config"
	"github.com/kalambet/moodrelay/internal/proxy"
	"github.com/kalambet/moodrelay/internal/relay"
	"github.com/kalambet/moodrelay/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"User ID not found","type":"not_found_error"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, msgs []proxy.Message) (string, error) {
	return "echo: " + msgs[len(msgs)-1].Content, nil
}

// liveServer runs the real API over an in-memory store.
func liveServer(t *testing.T) *apiClient {
	t.Helper()
	store := storage.NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })
	svc := relay.NewService(store, echoCompleter{}, relay.Options{})
	srv := httptest.NewServer(api.NewHandler(svc, nil))
	t.Cleanup(srv.Close)
	return &apiClient{baseURL: srv.URL, httpClient: srv.Client()}
}

var ctx = context.Background()

func withNoColor(t *testing.T) {
	t.Helper()
	old := noColor
	noColor = true
	t.Cleanup(func() { noColor = old })
}

func TestTalkCommand(t *testing.T) {
	withNoColor(t)
	ts := newTestServer(t, map[string]string{
		"POST /talk": `{"message":"Message recorded successfully","emotion_score":0.8,"timestamp":"2025-05-10T14:00:00+02:00"}`,
	})

	var out bytes.Buffer
	if err := runTalk(ctx, ts.client(), &out, "alice", "hello world"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Message recorded successfully") || !strings.Contains(out.String(), "+0.80") {
		t.Errorf("output = %q", out.String())
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/talk" {
		t.Errorf("request = %s %s, want POST /talk", r.Method, r.Path)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["user_id"] != "alice" || body["message"] != "hello world" {
		t.Errorf("body = %v", body)
	}
}

func TestMoodCommand_QueryEncoding(t *testing.T) {
	withNoColor(t)
	ts := newTestServer(t, map[string]string{
		"GET /mood": `{"mood":"Sad","average_emotion_score":-0.5,"recent_interactions":[{},{}]}`,
	})

	var out bytes.Buffer
	if err := runMood(ctx, ts.client(), &out, "bob smith", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Path != "/mood?user_id=bob+smith" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
	for _, want := range []string{"Mood: Sad", "Average: -0.50", "Recent messages: 2"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q missing %q", out.String(), want)
		}
	}
}

func TestServerErrorMessage(t *testing.T) {
	ts := newTestServer(t, nil)

	err := runMood(ctx, ts.client(), &bytes.Buffer{}, "ghost", false)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "server returned 404: User ID not found" {
		t.Errorf("error = %q", err.Error())
	}
}

func TestEndToEnd(t *testing.T) {
	withNoColor(t)
	client := liveServer(t)

	var out bytes.Buffer
	if err := runChat(ctx, client, &out, "alice", "I feel great"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.HasPrefix(out.String(), "echo: I feel great\n") {
		t.Errorf("chat output = %q", out.String())
	}

	if err := runTalk(ctx, client, &bytes.Buffer{}, "alice", "I am wonderful and happy today"); err != nil {
		t.Fatalf("talk: %v", err)
	}

	out.Reset()
	if err := runMood(ctx, client, &out, "alice", true); err != nil {
		t.Fatalf("mood: %v", err)
	}
	var mood moodResult
	if err := json.Unmarshal(out.Bytes(), &mood); err != nil {
		t.Fatalf("mood json: %v", err)
	}
	if mood.Mood != "Happy" || len(mood.RecentInteractions) != 1 {
		t.Errorf("mood = %+v", mood)
	}

	out.Reset()
	if err := runHistory(ctx, client, &out, "alice"); err != nil {
		t.Fatalf("history: %v", err)
	}
	var hist struct {
		Interactions []json.RawMessage `json:"interactions"`
	}
	if err := json.Unmarshal(out.Bytes(), &hist); err != nil {
		t.Fatalf("history json: %v", err)
	}
	if len(hist.Interactions) != 3 {
		t.Errorf("history has %d records, want 3", len(hist.Interactions))
	}

	err := runMood(ctx, client, &bytes.Buffer{}, "nobody", false)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("mood for unknown user: %v", err)
	}
}

func TestServerNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := &apiClient{baseURL: srv.URL, httpClient: srv.Client()}
	srv.Close()

	err := runTalk(ctx, client, &bytes.Buffer{}, "alice", "hi")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestTalkCommand_MissingArgs(t *testing.T) {
	calls := 0
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) {
		calls++
		return nil, errors.New("should not be called")
	}
	defer func() { newAPIClient = old }()
	defer rootCmd.SetArgs(nil)

	for _, args := range [][]string{
		{"talk", "hello"},
		{"talk", "--user", "alice"},
		{"chat", "--user", "alice", "  "},
		{"mood"},
	} {
		rootCmd.SetArgs(args)
		err := rootCmd.Execute()
		if err == nil {
			t.Errorf("%v: expected error", args)
			continue
		}
		if !strings.Contains(err.Error(), "required") {
			t.Errorf("%v: error = %q, want it to mention 'required'", args, err.Error())
		}
	}
	if calls != 0 {
		t.Errorf("client created %d times for invalid input", calls)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "moodrelay version dev\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestFormatScore(t *testing.T) {
	withNoColor(t)
	cases := map[float64]string{0.8: "+0.80", -0.25: "-0.25", 0: "+0.00"}
	for score, want := range cases {
		if got := formatScore(score); got != want {
			t.Errorf("formatScore(%v) = %q, want %q", score, got, want)
		}
	}
}

func TestConfigSetAndUnset(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("MOODRELAY_LLM_MODEL", "")
	defer rootCmd.SetArgs(nil)

	path := config.ConfigFilePath()
	if !strings.HasPrefix(path, dir) {
		t.Fatalf("config path %q is outside the temp dir", path)
	}

	rootCmd.SetArgs([]string{"config", "set", "llm.model", "gpt-4o-mini"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config set: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("LLM.Model = %q after set", cfg.LLM.Model)
	}

	rootCmd.SetArgs([]string{"config", "unset", "llm.model"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config unset: %v", err)
	}
	cfg, err = config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "gpt-4" {
		t.Errorf("LLM.Model = %q after unset, want the default gpt-4", cfg.LLM.Model)
	}

	rootCmd.SetArgs([]string{"config", "unset", "no.such.key"})
	if err := rootCmd.Execute(); err == nil {
		t.Error("unset of an unknown key succeeded")
	}
}
