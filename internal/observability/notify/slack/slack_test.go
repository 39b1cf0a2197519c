package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/target/hpcjobs/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when webhook url missing")
	}
}

func TestFormatMessageIncludesFields(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
		Channel:    "#hpc-alerts",
		Username:   "bot",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.JobFailurePayload{
		JobID:      "job-1",
		JobName:    "train",
		ExternalID: "55021",
		UserID:     "alice",
		Queue:      "gpu",
		Stage:      notify.StageRuntime,
		Error:      "OUT_OF_MEMORY",
		ErrorClass: "slurm_state",
	})

	if msg["username"] != "bot" {
		t.Fatalf("expected username to be preserved, got %v", msg["username"])
	}
	if msg["channel"] != "#hpc-alerts" {
		t.Fatalf("expected channel to be set, got %v", msg["channel"])
	}

	text, _ := msg["text"].(string)
	for _, want := range []string{"HPC job failed", "`job-1`", "train", "55021", "alice", "gpu", "runtime", "OUT_OF_MEMORY"} {
		if !strings.Contains(text, want) {
			t.Fatalf("message text missing %q: %s", want, text)
		}
	}
}

func TestFormatMessageJobLinkAndEscaping(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL:   "https://hooks.slack.com/services/test",
		JobURLPrefix: "https://hpc.example.com/jobs",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.JobFailurePayload{JobID: "abc", Error: "a<b>&c"})
	text, _ := msg["text"].(string)
	if !strings.Contains(text, "<https://hpc.example.com/jobs/abc|abc>") {
		t.Fatalf("expected job link, got %s", text)
	}
	if !strings.Contains(text, "a&lt;b&gt;&amp;c") {
		t.Fatalf("expected escaped error, got %s", text)
	}
}

func TestSendJobFailurePosts(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL, Client: srv.Client()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "j"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if got["username"] != "hpcjobs" {
		t.Fatalf("expected default username, got %v", got["username"])
	}
}
