package remote_test

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jos-todo/todosync/internal/model"
	"github.com/jos-todo/todosync/internal/remote"
)

func newClient(t *testing.T, baseURL string) *remote.Client {
	t.Helper()

	c, err := remote.NewClient(remote.Config{
		BaseURL:    baseURL,
		Credential: func() string { return "key" },
		Logger:     log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	return c
}

func TestClient_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"Invalid magic key"}`, remote.IsAuth},
		{"server error", http.StatusInternalServerError, `{"error":"Internal server error"}`, remote.IsTransport},
		{"bad gateway without body", http.StatusBadGateway, ``, remote.IsTransport},
		{"bad request", http.StatusBadRequest, `{"error":"Invalid payload"}`, func(err error) bool {
			var ve *remote.ValidationError
			return errors.As(err, &ve)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			err := newClient(t, ts.URL).Save(context.Background(), model.Document{})
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("unexpected classification: %T %v", err, err)
			}
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := newClient(t, url).Fetch(context.Background())
	if !remote.IsTransport(err) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if remote.IsAuth(err) {
		t.Error("unreachable remote must not be classified as auth failure")
	}
}

func TestClient_SendsCredentialHeader(t *testing.T) {
	var gotKey, gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(remote.HeaderMagicKey)
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `{"ok":true,"migrated":false,"reason":"remote_has_data"}`)
	}))
	defer ts.Close()

	res, err := newClient(t, ts.URL+"/.netlify/functions").Migrate(context.Background(), model.Document{})
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if gotKey != "key" {
		t.Errorf("header = %q, want %q", gotKey, "key")
	}
	if gotPath != "/.netlify/functions/state-migrate" {
		t.Errorf("path = %q", gotPath)
	}
	if res.Migrated || res.Reason != remote.ReasonRemoteHasData {
		t.Errorf("got %+v", res)
	}
}

func TestClient_MissingCredential(t *testing.T) {
	c, err := remote.NewClient(remote.Config{
		BaseURL: "http://127.0.0.1:1/",
		Logger:  log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	if err := c.Verify(context.Background()); !remote.IsAuth(err) {
		t.Errorf("expected AuthError for missing credential, got %v", err)
	}
}
