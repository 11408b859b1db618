package circleci_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/waabox/circledeck/internal/domain"
	"github.com/waabox/circledeck/internal/provider/circleci"
)

var project = domain.Project{VCS: "gh", Owner: "acme", Name: "app"}

func pipelineJSON(id string, created string) map[string]interface{} {
	return map[string]interface{}{
		"id":           id,
		"errors":       []interface{}{},
		"project_slug": "gh/acme/app",
		"updated_at":   created,
		"number":       float64(4521),
		"state":        "created",
		"created_at":   created,
		"trigger": map[string]interface{}{
			"received_at": created,
			"type":        "webhook",
			"actor":       map[string]interface{}{"login": "frehulfd", "avatar_url": nil},
		},
		"vcs": map[string]interface{}{
			"origin_repository_url": "https://github.com/acme/app",
			"target_repository_url": "https://github.com/acme/app",
			"revision":              "9bc8e90d907a9e10abcbdaae757dd8d826d33a08",
			"provider_name":         "GitHub",
			"commit":                map[string]interface{}{"subject": "fix: login timeout", "body": ""},
			"branch":                "main",
		},
	}
}

func newServer(t *testing.T, routes map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Circle-Token") != "test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if raw, isRaw := body.(string); isRaw {
			io.WriteString(w, raw)
			return
		}
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestListPipelines_DecodesItems(t *testing.T) {
	srv := newServer(t, map[string]interface{}{
		"GET /project/gh/acme/app/pipeline": map[string]interface{}{
			"next_page_token": "tok-2",
			"items":           []interface{}{pipelineJSON("p-1", "2024-01-05T18:24:27.123Z")},
		},
	})
	client := circleci.NewClient("test-token", srv.URL)

	page, err := client.ListPipelines(context.Background(), project, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 pipeline, got %d", len(page.Items))
	}
	if page.NextPageToken != "tok-2" {
		t.Errorf("expected next page token 'tok-2', got '%s'", page.NextPageToken)
	}
	p := page.Items[0]
	if p.ID != "p-1" || p.Number != 4521 {
		t.Errorf("unexpected pipeline identity: %s #%d", p.ID, p.Number)
	}
	if p.VCS.Branch != "main" || p.VCS.Commit == nil || p.VCS.Commit.Subject != "fix: login timeout" {
		t.Errorf("unexpected vcs: %+v", p.VCS)
	}
	if p.Trigger.Actor.Login != "frehulfd" || p.Trigger.Actor.AvatarURL != "" {
		t.Errorf("unexpected actor: %+v", p.Trigger.Actor)
	}
	want := time.Date(2024, 1, 5, 18, 24, 27, 123000000, time.UTC)
	if !p.CreatedAt.Equal(want) {
		t.Errorf("expected created_at %v, got %v", want, p.CreatedAt)
	}
}

func TestListPipelines_OnlyMineUsesMineSuffix(t *testing.T) {
	srv := newServer(t, map[string]interface{}{
		"GET /project/gh/acme/app/pipeline/mine": map[string]interface{}{"items": []interface{}{}},
	})
	client := circleci.NewClient("test-token", srv.URL)

	page, err := client.ListPipelines(context.Background(), project, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 0 {
		t.Errorf("expected no pipelines, got %d", len(page.Items))
	}
}

func TestListPipelines_RejectsTimestampWithoutFraction(t *testing.T) {
	srv := newServer(t, map[string]interface{}{
		"GET /project/gh/acme/app/pipeline": map[string]interface{}{
			"items": []interface{}{pipelineJSON("p-1", "2024-01-05T18:24:27Z")},
		},
	})
	client := circleci.NewClient("test-token", srv.URL)

	_, err := client.ListPipelines(context.Background(), project, false)
	var decodeErr *domain.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %T %v", err, err)
	}
}

func TestListPipelines_RejectsUnknownState(t *testing.T) {
	raw := pipelineJSON("p-1", "2024-01-05T18:24:27.123Z")
	raw["state"] = "exploded"
	srv := newServer(t, map[string]interface{}{
		"GET /project/gh/acme/app/pipeline": map[string]interface{}{"items": []interface{}{raw}},
	})
	client := circleci.NewClient("test-token", srv.URL)

	_, err := client.ListPipelines(context.Background(), project, false)
	var decodeErr *domain.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %T %v", err, err)
	}
}

func TestListWorkflows_DecodesStandardTimestamps(t *testing.T) {
	srv := newServer(t, map[string]interface{}{
		"GET /pipeline/p-1/workflow": map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{
					"pipeline_id":     "p-1",
					"id":              "wf-1",
					"name":            "build-and-test",
					"project_slug":    "gh/acme/app",
					"status":          "failing",
					"started_by":      "u-1",
					"pipeline_number": float64(4521),
					"created_at":      "2024-01-05T18:24:30Z",
					"stopped_at":      nil,
				},
			},
		},
	})
	client := circleci.NewClient("test-token", srv.URL)

	workflows, err := client.ListWorkflows(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(workflows) != 1 {
		t.Fatalf("expected 1 workflow, got %d", len(workflows))
	}
	w := workflows[0]
	if w.Status != domain.WorkflowFailing {
		t.Errorf("expected status failing, got '%s'", w.Status)
	}
	if !w.StoppedAt.IsZero() {
		t.Errorf("expected zero stopped_at, got %v", w.StoppedAt)
	}
	if w.CreatedAt.IsZero() {
		t.Error("expected created_at to be decoded")
	}
}

func TestListJobs_QueuedJobHasNoNumber(t *testing.T) {
	srv := newServer(t, map[string]interface{}{
		"GET /workflow/wf-1/job": map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{
					"dependencies": []string{},
					"job_number":   float64(9001),
					"id":           "j-1",
					"started_at":   "2024-01-05T18:25:00Z",
					"stopped_at":   "2024-01-05T18:26:10Z",
					"name":         "unit-tests",
					"project_slug": "gh/acme/app",
					"status":       "failed",
					"type":         "build",
				},
				map[string]interface{}{
					"dependencies": []string{"j-1"},
					"id":           "j-2",
					"name":         "deploy",
					"project_slug": "gh/acme/app",
					"status":       "queued",
					"type":         "build",
				},
			},
		},
	})
	client := circleci.NewClient("test-token", srv.URL)

	jobs, err := client.ListJobs(context.Background(), "wf-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].JobNumber == nil || *jobs[0].JobNumber != 9001 {
		t.Errorf("expected job number 9001, got %v", jobs[0].JobNumber)
	}
	if jobs[0].Duration(time.Now()) != 70*time.Second {
		t.Errorf("expected 70s duration, got %v", jobs[0].Duration(time.Now()))
	}
	if jobs[1].JobNumber != nil {
		t.Errorf("expected queued job without number, got %d", *jobs[1].JobNumber)
	}
	if len(jobs[1].Dependencies) != 1 || jobs[1].Dependencies[0] != "j-1" {
		t.Errorf("unexpected dependencies: %v", jobs[1].Dependencies)
	}
}

func TestListJobs_MalformedBodyIsDecodeError(t *testing.T) {
	srv := newServer(t, map[string]interface{}{
		"GET /workflow/wf-1/job": `{"items": [ {"id": 12`,
	})
	client := circleci.NewClient("test-token", srv.URL)

	_, err := client.ListJobs(context.Background(), "wf-1")
	var decodeErr *domain.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %T %v", err, err)
	}
}

func TestListTestFailures_ReturnsAllRows(t *testing.T) {
	srv := newServer(t, map[string]interface{}{
		"GET /project/gh/acme/app/9001/tests": map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{
					"message": "expected 1, got 2", "source": "junit", "run_time": 0.25,
					"file": "math_test.go", "result": "failure", "name": "TestAdd", "classname": "math",
				},
				map[string]interface{}{
					"message": "", "source": "junit", "run_time": 0.01,
					"result": "success", "name": "TestSub", "classname": "math",
				},
			},
		},
	})
	client := circleci.NewClient("test-token", srv.URL)

	records, err := client.ListTestFailures(context.Background(), project, 9001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(records))
	}
	if records[0].File != "math_test.go" || records[1].File != "" {
		t.Errorf("unexpected files: %q %q", records[0].File, records[1].File)
	}
}

func TestRetryFromFailed_PostsFromFailedBody(t *testing.T) {
	var gotBody map[string]interface{}
	var gotContentType, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/workflow/wf-1/rerun" {
			http.NotFound(w, r)
			return
		}
		gotContentType = r.Header.Get("Content-Type")
		gotToken = r.Header.Get("Circle-Token")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"workflow_id":"wf-2"}`)
	}))
	defer srv.Close()

	client := circleci.NewClient("test-token", srv.URL)
	if err := client.RetryFromFailed(context.Background(), "wf-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody["from_failed"] != true {
		t.Errorf("expected from_failed=true, got %v", gotBody)
	}
	if gotContentType != "application/json" {
		t.Errorf("expected JSON content type, got '%s'", gotContentType)
	}
	if gotToken != "test-token" {
		t.Errorf("expected Circle-Token header, got '%s'", gotToken)
	}
}

func TestClient_UnauthorizedIsTransportError(t *testing.T) {
	srv := newServer(t, nil)
	client := circleci.NewClient("wrong-token", srv.URL)

	_, err := client.ListWorkflows(context.Background(), "p-1")
	var transportErr *domain.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %T %v", err, err)
	}
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Error("expected errors.Is to detect ErrUnauthorized")
	}
}

func TestClient_ConnectionFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := circleci.NewClient("test-token", url)
	_, err := client.ListJobs(context.Background(), "wf-1")
	var transportErr *domain.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %T %v", err, err)
	}
}

func TestClient_MissingTokenMakesNoRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := circleci.NewClient("", srv.URL)
	err := client.RetryFromFailed(context.Background(), "wf-1")
	if !errors.Is(err, domain.ErrMissingToken) {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
	if called {
		t.Error("expected no request without an API key")
	}
}

func TestClient_CanceledContextIsNotTransportError(t *testing.T) {
	srv := newServer(t, map[string]interface{}{"GET /workflow/wf-1/job": map[string]interface{}{"items": []interface{}{}}})
	client := circleci.NewClient("test-token", srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.ListJobs(ctx, "wf-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		t.Error("cancellation must not be reported as a transport failure")
	}
}
