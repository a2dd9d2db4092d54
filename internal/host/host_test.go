package host

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/CosmoTheDev/forgemirror/internal/config"
	gogithub "github.com/google/go-github/v68/github"
)

func newTestGitHub(t *testing.T, h http.Handler) *GitHub {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := gogithub.NewClient(srv.Client())
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	c.BaseURL = base
	return &GitHub{client: c, org: "Acme"}
}

var acmeRepo = Repo{
	Name:        "acme",
	Description: "Acme tools",
	Homepage:    "https://forge.example/source/acme/",
}

func TestGitHubCreateSendsMirrorSettings(t *testing.T) {
	var body map[string]any
	g := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orgs/Acme/repos" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1,"name":"acme"}`))
	}))

	if err := g.Create(context.Background(), acmeRepo); err != nil {
		t.Fatalf("Create: %v", err)
	}
	want := map[string]any{
		"name":          "acme",
		"description":   "Acme tools",
		"homepage":      "https://forge.example/source/acme/",
		"private":       false,
		"has_issues":    false,
		"has_wiki":      false,
		"has_downloads": true,
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("body[%q] = %v, want %v", k, body[k], v)
		}
	}
}

func TestGitHubCreateRecognisesExistingName(t *testing.T) {
	g := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Repository creation failed.","errors":[{"resource":"Repository","code":"custom","field":"name","message":"name already exists on this account"}]}`))
	}))

	err := g.Create(context.Background(), acmeRepo)
	if !IsAlreadyExists(err) {
		t.Fatalf("expected already-exists error, got %v", err)
	}
	we := err.(*WriteError)
	if we.Action != ActionCreate || we.Status != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected write error: %+v", we)
	}
}

func TestGitHubUpdateReportsStatus(t *testing.T) {
	g := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/repos/Acme/acme" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Must have admin rights to Repository."}`))
	}))

	err := g.Update(context.Background(), acmeRepo)
	we, ok := err.(*WriteError)
	if !ok {
		t.Fatalf("expected *WriteError, got %T: %v", err, err)
	}
	if we.Action != ActionUpdate || we.Status != http.StatusForbidden || we.Exists {
		t.Fatalf("unexpected write error: %+v", we)
	}
}

func TestGitLabCreateAndUpdate(t *testing.T) {
	var created, edited map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v4/groups/mirrors":
			_, _ = w.Write([]byte(`{"id":5,"full_path":"mirrors"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/v4/projects":
			_ = json.NewDecoder(r.Body).Decode(&created)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":{"name":["has already been taken"],"path":["has already been taken"]}}`))
		case r.Method == http.MethodPut && strings.HasSuffix(r.URL.EscapedPath(), "/projects/mirrors%2Facme"):
			_ = json.NewDecoder(r.Body).Decode(&edited)
			_, _ = w.Write([]byte(`{"id":9,"path_with_namespace":"mirrors/acme"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.EscapedPath())
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	g, err := NewGitLab(config.HostConfig{
		Provider: config.ProviderGitLab,
		APIURL:   srv.URL + "/api/v4/",
		Token:    "glpat-test",
		Org:      "mirrors",
	})
	if err != nil {
		t.Fatalf("NewGitLab: %v", err)
	}

	err = g.Create(context.Background(), acmeRepo)
	if !IsAlreadyExists(err) {
		t.Fatalf("expected already-exists error, got %v", err)
	}
	if created["namespace_id"] != float64(5) || created["visibility"] != "public" {
		t.Fatalf("unexpected create body: %v", created)
	}

	if err := g.Update(context.Background(), acmeRepo); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if edited["description"] != "Acme tools (https://forge.example/source/acme/)" {
		t.Fatalf("unexpected description: %v", edited["description"])
	}
	if edited["issues_access_level"] != "disabled" || edited["wiki_access_level"] != "disabled" {
		t.Fatalf("features not disabled: %v", edited)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	if _, err := New(config.HostConfig{Provider: "bitbucket"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
