package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CosmoTheDev/forgemirror/internal/config"
	"github.com/CosmoTheDev/forgemirror/internal/mirror"
)

type recorder struct {
	name string
	sent []Event
	err  error
}

func (r *recorder) Name() string       { return r.name }
func (r *recorder) IsConfigured() bool { return r.name != "" }
func (r *recorder) Send(_ context.Context, evt Event) error {
	r.sent = append(r.sent, evt)
	return r.err
}

func TestDispatcherDefaultEvents(t *testing.T) {
	rec := &recorder{name: "rec"}
	d := newDispatcher(nil, rec, &recorder{})
	if !d.IsAnyConfigured() || len(d.channels) != 1 {
		t.Fatalf("channels = %d, want 1", len(d.channels))
	}

	d.Notify(context.Background(), Event{Type: EventMirrorFailed})
	d.Notify(context.Background(), Event{Type: EventBatchCompleted})
	d.Notify(context.Background(), Event{Type: EventLinkWriteFailed})
	if len(rec.sent) != 2 {
		t.Fatalf("sent = %d, want 2", len(rec.sent))
	}
	if rec.sent[1].Type != EventLinkWriteFailed {
		t.Errorf("second event = %s", rec.sent[1].Type)
	}
}

func TestDispatcherConfiguredEvents(t *testing.T) {
	rec := &recorder{name: "rec", err: errors.New("down")}
	d := newDispatcher([]string{EventBatchCompleted}, rec)

	d.Notify(context.Background(), Event{Type: EventMirrorFailed})
	d.Notify(context.Background(), Event{Type: EventBatchCompleted})
	if len(rec.sent) != 1 || rec.sent[0].Type != EventBatchCompleted {
		t.Fatalf("sent = %+v", rec.sent)
	}
}

func TestResultEvent(t *testing.T) {
	if _, ok := ResultEvent("mirror", mirror.Result{Repo: "42", Kind: mirror.OutcomeMirrored}); ok {
		t.Error("event for mirrored result")
	}

	evt, ok := ResultEvent("mirror", mirror.Result{
		Repo: "42",
		Kind: mirror.OutcomeFailed,
		Err:  &mirror.Error{Kind: mirror.KindLinkWrite, Repo: "42", Err: errors.New("denied")},
	})
	if !ok || evt.Type != EventLinkWriteFailed || evt.Kind != string(mirror.KindLinkWrite) {
		t.Fatalf("event = %+v", evt)
	}

	evt, _ = ResultEvent("mirror", mirror.Result{
		Repo: "43",
		Kind: mirror.OutcomeFailed,
		Err:  &mirror.Error{Kind: mirror.KindPolicy, Repo: "43"},
	})
	if evt.Type != EventMirrorFailed || evt.Repo != "43" {
		t.Errorf("event = %+v", evt)
	}
}

func TestWebhookSignsBody(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if want := "sha256=" + sign("s3cret", body); r.Header.Get(SignatureHeader) != want {
			t.Errorf("signature = %q, want %q", r.Header.Get(SignatureHeader), want)
		}
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := NewWebhook(config.WebhookNotifyConfig{URL: srv.URL, Secret: "s3cret"})
	evt := BatchEvent("mirrors", "q1", mirror.Summary{Total: 3, Mirrored: 2, Failed: 1})
	if err := ch.Send(context.Background(), evt); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["type"] != EventBatchCompleted {
		t.Errorf("type = %v", got["type"])
	}
	meta, _ := got["metadata"].(map[string]any)
	if meta["failed"] != float64(1) {
		t.Errorf("metadata = %v", meta)
	}
}

func TestSlackRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	ch := NewSlack(config.SlackNotifyConfig{WebhookURL: srv.URL})
	if err := ch.Send(context.Background(), Event{Type: EventMirrorFailed, Title: "x"}); err == nil {
		t.Fatal("expected error on 403")
	}
}
