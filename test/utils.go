package test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hibiken/asynq"

	"tryonapi/models"
	"tryonapi/services"
	"tryonapi/tryon"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

// NewJSONKeyRequest is NewJSONRequest with the relay credential header set.
func NewJSONKeyRequest(method string, target string, apiKey string, param interface{}) *http.Request {
	req := NewJSONRequest(method, target, param)
	req.Header.Add(tryon.APIKeyHeader, apiKey)
	return req
}

func NewRawJSONRequest(method string, target string, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func Contains(items []string, lookFor string) bool {
	for _, item := range items {
		if item == lookFor {
			return true
		}
	}
	return false
}

// UpstreamMock records forwarded calls and answers with Reply or Err.
type UpstreamMock struct {
	Reply *services.UpstreamReply
	Err   error

	mu       sync.Mutex
	calls    int32
	LastKey  string
	LastBody []byte
}

func (m *UpstreamMock) Forward(ctx context.Context, apiKey string, body []byte) (*services.UpstreamReply, error) {
	atomic.AddInt32(&m.calls, 1)
	m.mu.Lock()
	m.LastKey = apiKey
	m.LastBody = append([]byte(nil), body...)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Reply == nil {
		return &services.UpstreamReply{StatusCode: http.StatusOK, Body: json.RawMessage(`{"data":[{"url":"https://cdn.example.com/result.png"}]}`)}, nil
	}
	return m.Reply, nil
}

func (m *UpstreamMock) Calls() int {
	return int(atomic.LoadInt32(&m.calls))
}

// EnqueuerMock keeps enqueued tasks in memory.
type EnqueuerMock struct {
	Err error

	mu    sync.Mutex
	Tasks []*asynq.Task
	Opts  [][]asynq.Option
}

func (m *EnqueuerMock) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tasks = append(m.Tasks, task)
	m.Opts = append(m.Opts, opts)

	info := &asynq.TaskInfo{Type: task.Type(), Payload: task.Payload(), State: asynq.TaskStatePending}
	for _, opt := range opts {
		switch opt.Type() {
		case asynq.TaskIDOpt:
			info.ID, _ = opt.Value().(string)
		case asynq.QueueOpt:
			info.Queue, _ = opt.Value().(string)
		case asynq.MaxRetryOpt:
			info.MaxRetry, _ = opt.Value().(int)
		}
	}
	return info, nil
}

// JobCacheMock serves jobs from a map; unknown ids are not found.
type JobCacheMock struct {
	Jobs map[string]models.TryOnJobResponse
	Err  error
}

func (m *JobCacheMock) GetJob(ctx context.Context, id string) (models.TryOnJobResponse, error) {
	if m.Err != nil {
		return models.TryOnJobResponse{}, m.Err
	}
	job, ok := m.Jobs[id]
	if !ok {
		return models.TryOnJobResponse{}, services.ErrJobNotFound
	}
	return job, nil
}

// GeneratorMock stands in for *tryon.Client in worker tests.
type GeneratorMock struct {
	ImageURL string
	Err      error
	Requests []tryon.Request
}

func (m *GeneratorMock) GenerateTryOnImage(ctx context.Context, req tryon.Request) (string, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	if m.ImageURL == "" {
		return "", errors.New("generator mock has no image url")
	}
	return m.ImageURL, nil
}

// NewStubProvider starts an upstream that always answers status and body
// and counts the requests it receives.
func NewStubProvider(status int, body string) (*httptest.Server, *int32) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	return srv, &calls
}
