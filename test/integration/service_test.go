//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	httpadapter "github.com/jsamuelsen/gallery-quiz/internal/adapters/http"
	"github.com/jsamuelsen/gallery-quiz/internal/adapters/http/handlers"
	"github.com/jsamuelsen/gallery-quiz/internal/app"
	"github.com/jsamuelsen/gallery-quiz/internal/domain"
	"github.com/jsamuelsen/gallery-quiz/internal/platform/config"
	"github.com/jsamuelsen/gallery-quiz/internal/ports"
)

const quizBase = "/api/v1/quiz"

// stepBodies answer exactly what each step requires.
var stepBodies = map[int]string{
	1: `{"usage":["Own gallery"],"chargeAdmission":"Yes","admissionFee":10,"annualVisitors":5000}`,
	2: `{"products":["AI-only handset"]}`,
	3: `{"deviceCounts":{"AI-only handset":20}}`,
	4: `{"languages":["English","French","German"]}`,
	5: `{"pointsOfInterest":"30+","updateFrequency":"Monthly"}`,
	6: `{"wifiStable":"Yes","powerStable":"Yes"}`,
	7: `{"objectives":["Increase engagement"],"commercialStructure":"Leasing"}`,
}

func init() {
	gin.SetMode(gin.TestMode)
}

// service is one in-process instance of the quiz API.
type service struct {
	server *httptest.Server
	quiz   *app.QuizService
}

// startService runs the full router over store with millisecond timings.
func startService(store ports.SnapshotStore) *service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	metrics := app.NewMetrics(reg)

	registry := app.NewSessionRegistry(app.RegistryConfig{
		Store: store,
		Timings: domain.Timings{
			SurgeDelay:         time.Millisecond,
			ExitDuration:       time.Millisecond,
			EnterDuration:      time.Millisecond,
			ProcessingDuration: 5 * time.Millisecond,
		},
		IdleTimeout:     time.Minute,
		JanitorInterval: time.Second,
		Metrics:         metrics,
		Logger:          logger,
	})
	registry.Start()

	quiz := app.NewQuizService(app.QuizServiceConfig{
		Registry: registry,
		Metrics:  metrics,
		Logger:   logger,
	})

	healthRegistry := ports.NewHealthRegistry()
	_ = healthRegistry.Register(store)

	engine := gin.New()
	httpadapter.SetupRouter(engine, httpadapter.NewDefaultRouterConfig(
		logger,
		&config.AppConfig{Name: "gallery-quiz", Version: "test", Environment: "test"},
		handlers.NewHealthHandler(healthRegistry, handlers.NewBuildInfo("test", "none", "now"), handlers.WithGatherer(reg)),
		handlers.NewQuizHandler(quiz),
	))

	return &service{server: httptest.NewServer(engine), quiz: quiz}
}

// Close stops the server and the sessions. The store stays open.
func (s *service) Close() {
	s.server.Close()
	_ = s.quiz.Close()
}

func (s *service) URL() string {
	return s.server.URL
}

// apiResponse is a fully read HTTP response.
type apiResponse struct {
	status int
	header http.Header
	body   []byte
}

func call(ctx context.Context, client *http.Client, method, url, body string) (*apiResponse, error) {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &apiResponse{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

// quizClient drives the wizard the way the browser does.
type quizClient struct {
	baseURL string
	client  *http.Client
}

func newQuizClient(baseURL string) *quizClient {
	return &quizClient{baseURL: baseURL, client: &http.Client{Timeout: 10 * time.Second}}
}

func (q *quizClient) do(ctx context.Context, method, path, body string) (*apiResponse, error) {
	return call(ctx, q.client, method, q.baseURL+path, body)
}

func (q *quizClient) view(ctx context.Context, method, path, body string) (app.SessionView, error) {
	var view app.SessionView

	resp, err := q.do(ctx, method, path, body)
	if err != nil {
		return view, err
	}
	if resp.status >= http.StatusBadRequest {
		return view, fmt.Errorf("%s %s: status %d: %s", method, path, resp.status, resp.body)
	}

	if err := json.Unmarshal(resp.body, &view); err != nil {
		return view, fmt.Errorf("decoding session: %w", err)
	}

	return view, nil
}

func (q *quizClient) start(ctx context.Context) (app.SessionView, error) {
	return q.view(ctx, http.MethodPost, quizBase+"/sessions", "")
}

func (q *quizClient) open(ctx context.Context, id string) (app.SessionView, error) {
	return q.view(ctx, http.MethodPut, quizBase+"/sessions/"+id, "")
}

func (q *quizClient) answer(ctx context.Context, id, patch string) (app.SessionView, error) {
	return q.view(ctx, http.MethodPatch, quizBase+"/sessions/"+id+"/answers", patch)
}

func (q *quizClient) transition(ctx context.Context, id, direction string) (app.TransitionResult, error) {
	var result app.TransitionResult

	resp, err := q.do(ctx, http.MethodPost, quizBase+"/sessions/"+id+"/"+direction, "")
	if err != nil {
		return result, err
	}
	if resp.status != http.StatusOK {
		return result, fmt.Errorf("%s: status %d: %s", direction, resp.status, resp.body)
	}

	return result, json.Unmarshal(resp.body, &result)
}

// settle polls the session until no transition is running.
func (q *quizClient) settle(ctx context.Context, id string) (app.SessionView, error) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	for {
		view, err := q.view(ctx, http.MethodGet, quizBase+"/sessions/"+id, "")
		if err != nil {
			return view, err
		}
		if view.Transition.Phase == domain.PhaseIdle || view.Transition.Finished {
			return view, nil
		}

		select {
		case <-ctx.Done():
			return view, fmt.Errorf("session %s did not settle: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

// complete answers and advances through every step until the session finishes.
func (q *quizClient) complete(ctx context.Context, id string) (app.SessionView, error) {
	var view app.SessionView

	for step := int(domain.FirstStep); step <= int(domain.LastStep); step++ {
		if _, err := q.answer(ctx, id, stepBodies[step]); err != nil {
			return view, err
		}

		result, err := q.transition(ctx, id, "advance")
		if err != nil {
			return view, err
		}
		if !result.Accepted {
			return view, fmt.Errorf("advance from step %d refused", step)
		}

		if view, err = q.settle(ctx, id); err != nil {
			return view, err
		}
	}

	return view, nil
}

func (q *quizClient) results(ctx context.Context, id string) (app.Results, error) {
	var results app.Results

	resp, err := q.do(ctx, http.MethodGet, quizBase+"/sessions/"+id+"/results", "")
	if err != nil {
		return results, err
	}
	if resp.status != http.StatusOK {
		return results, fmt.Errorf("results: status %d: %s", resp.status, resp.body)
	}

	return results, json.Unmarshal(resp.body, &results)
}

func timeoutContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	return ctx
}
