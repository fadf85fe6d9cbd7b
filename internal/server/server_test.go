package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/fastcrud/apiserver/config"
)

func memoryConfig() config.Config {
	return config.Config{
		ServerPort:   0,
		APIPrefix:    "/api/v2",
		StoreBackend: config.StoreBackendMemory,
		Auth: config.AuthConfig{
			Secret:     "server-secret",
			Algorithm:  "HS512",
			Issuer:     "fastcrud-auth",
			Audience:   "fastcrud-auth",
			TokenTTL:   time.Hour,
			BcryptCost: 4,
		},
		MQ: config.MQConfig{Backend: "memory"},
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.Auth.Secret = ""
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for missing secret")
	}

	cfg = memoryConfig()
	cfg.MQ.Backend = "kafka"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for unknown mq backend")
	}
}

func TestServerRoutes(t *testing.T) {
	srv, err := New(context.Background(), memoryConfig(), nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer srv.Shutdown(context.Background())

	if srv.httpServer.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", srv.httpServer.Addr)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status %d", resp.StatusCode)
	}

	body, _ := json.Marshal(map[string]string{
		"first_name": "A",
		"last_name":  "B",
		"email":      "a@b.com",
		"phone":      "+15551234567",
		"password":   "secret123",
	})
	resp, err = http.Post(ts.URL+"/api/v2/users", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d", resp.StatusCode)
	}

	form := url.Values{"username": {"a@b.com"}, "password": {"secret123"}}
	resp, err = http.Post(ts.URL+"/api/v2/auth/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || token.AccessToken == "" {
		t.Fatalf("login status %d token %+v", resp.StatusCode, token)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v2/auth/me", nil)
	req.Header.Set("Authorization", token.TokenType+" "+token.AccessToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/v1/auth/me")
	if err != nil {
		t.Fatalf("old prefix: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected routes only under the configured prefix, got %d", resp.StatusCode)
	}
}
