package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	var gotReq generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "CALL: PLANNER | scheduling"})
	}))
	defer server.Close()

	c := NewClient(server.URL, "testmodel")
	out, err := c.Generate(context.Background(), "route this")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "CALL: PLANNER | scheduling" {
		t.Errorf("Unexpected output: %q", out)
	}
	if gotReq.Model != "testmodel" || gotReq.Prompt != "route this" {
		t.Errorf("Unexpected request: %+v", gotReq)
	}
	if gotReq.Stream {
		t.Error("Requests must be non-streaming")
	}
}

func TestGenerateErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL, "missing")
	if _, err := c.Generate(context.Background(), "x"); err == nil {
		t.Error("Non-200 status should be an error")
	}
}

func TestSearcherWrapsQuery(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Prompt
		json.NewEncoder(w).Encode(generateResponse{Response: "A short answer."})
	}))
	defer server.Close()

	s := NewSearcher(NewClient(server.URL, "llama3.2"))
	result, err := s.Search(context.Background(), "how do tides work")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result != "A short answer." {
		t.Errorf("Unexpected result: %q", result)
	}
	if !strings.Contains(prompt, "how do tides work") {
		t.Errorf("Query missing from prompt: %q", prompt)
	}
}
