package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"fabdrop/internal/auth"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// Token is the bearer token accepted by APIServer.
const Token = "test-token"

// Credential returns a credential issuing Token for every resource.
func Credential() *auth.Credential {
	return auth.NewCredential(StaticTokens{})
}

// StaticTokens is a TokenProvider answering Token, or Err when set.
type StaticTokens struct {
	Err error
}

// Token implements auth.TokenProvider.
func (s StaticTokens) Token(ctx context.Context, resource string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return Token, nil
}

// Request is one request seen by an APIServer.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// APIServer is a TLS test server that rejects requests without the test
// bearer token and records every accepted request.
type APIServer struct {
	*httptest.Server
	Mux *http.ServeMux

	mu       sync.Mutex
	requests []Request
}

// NewAPIServer starts a server closed at test cleanup.
func NewAPIServer(t *testing.T) *APIServer {
	t.Helper()
	s := &APIServer{Mux: http.NewServeMux()}
	s.Server = httptest.NewTLSServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *APIServer) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+Token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
	s.mu.Unlock()

	s.Mux.ServeHTTP(w, r)
}

// Requests returns a copy of the recorded requests.
func (s *APIServer) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// ClientOptions routes an azcore pipeline to the server without retries.
func (s *APIServer) ClientOptions() policy.ClientOptions {
	return policy.ClientOptions{
		Transport: s.Client(),
		Retry:     policy.RetryOptions{MaxRetries: -1},
	}
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
