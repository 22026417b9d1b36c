package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tryonapi/config"
	"tryonapi/models"
	"tryonapi/services"
	"tryonapi/test"
	"tryonapi/tryon"
)

func newTestConfig() *config.Config {
	return &config.Config{
		Relay: config.RelayConfig{
			Port:           3001,
			UpstreamURL:    config.DefaultProviderURL,
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			UserAgent:      config.DefaultUserAgent,
			BodyLimit:      "10M",
		},
		Queue: config.QueueConfig{Name: "generate", Concurrency: 1},
		Kiosk: config.KioskConfig{
			ProcessingTimeout: 30 * time.Second,
			ResultRetention:   time.Hour,
		},
	}
}

func newRelayServer(cfg *config.Config, upstream services.UpstreamProvider) *echo.Echo {
	return SetupServer(cfg, upstream, nil, nil, zap.NewNop())
}

var generationBody = models.GenerationRequest{
	Model:                     config.DefaultModelID,
	Prompt:                    tryon.TryOnPrompt,
	Image:                     []string{"data:image/jpeg;base64,AAAA", "https://cdn.example.com/outfit.png"},
	SequentialImageGeneration: "disabled",
	Size:                      "2K",
	ResponseFormat:            "url",
	Watermark:                 false,
}

func decodeRelayError(t *testing.T, rec *httptest.ResponseRecorder) models.RelayErrorResponse {
	t.Helper()
	var response models.RelayErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response), rec.Body.String())
	return response
}

func TestHealthOk(t *testing.T) {
	e := newRelayServer(newTestConfig(), &test.UpstreamMock{Err: errors.New("unreachable")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.NotEmpty(t, response.Message)
}

func TestGenerateMissingKey(t *testing.T) {
	upstream := &test.UpstreamMock{}
	e := newRelayServer(newTestConfig(), upstream)

	req := test.NewJSONRequest(http.MethodPost, tryon.RelayRoutePath, generationBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	response := decodeRelayError(t, rec)
	assert.Equal(t, models.KindAPIKeyMissing, response.Error)
	assert.NotEmpty(t, response.Message)
	assert.Equal(t, 0, upstream.Calls())
}

func TestGenerateForwardsBodyWithHeaderKey(t *testing.T) {
	upstream := &test.UpstreamMock{Reply: &services.UpstreamReply{
		StatusCode: http.StatusOK,
		Body:       json.RawMessage(`{"data":[{"url":"https://cdn.example.com/r.png"}],"usage":{"generated_images":1}}`),
	}}
	e := newRelayServer(newTestConfig(), upstream)

	req := test.NewJSONKeyRequest(http.MethodPost, tryon.RelayRoutePath, "sk-header", generationBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"data":[{"url":"https://cdn.example.com/r.png"}],"usage":{"generated_images":1}}`, rec.Body.String())
	assert.Equal(t, 1, upstream.Calls())
	assert.Equal(t, "sk-header", upstream.LastKey)
	assert.JSONEq(t, test.JsonString(generationBody), string(upstream.LastBody))
}

func TestGenerateConfiguredKeyWinsOverHeader(t *testing.T) {
	cfg := newTestConfig()
	cfg.Relay.APIKey = "sk-env"
	upstream := &test.UpstreamMock{}
	e := newRelayServer(cfg, upstream)

	req := test.NewJSONKeyRequest(http.MethodPost, tryon.RelayRoutePath, "sk-header", generationBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sk-env", upstream.LastKey)
}

func TestGenerateConfiguredKeyWithoutHeader(t *testing.T) {
	cfg := newTestConfig()
	cfg.Relay.APIKey = "sk-env"
	upstream := &test.UpstreamMock{}
	e := newRelayServer(cfg, upstream)

	req := test.NewJSONRequest(http.MethodPost, "/generate", generationBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, upstream.Calls())
}

func TestGeneratePassesThroughUpstreamErrors(t *testing.T) {
	tests := []struct {
		status int
		body   string
	}{
		{http.StatusBadRequest, `{"error":{"code":"InvalidParameter","message":"image is not valid"}}`},
		{http.StatusUnauthorized, `{"error":{"code":"AuthenticationError","message":"bad key"}}`},
		{http.StatusTooManyRequests, `{"error":{"code":"RateLimitExceeded"}}`},
		{http.StatusServiceUnavailable, `["unexpected", 1, null]`},
		{http.StatusBadGateway, `"just a string"`},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			upstream := &test.UpstreamMock{Reply: &services.UpstreamReply{StatusCode: tt.status, Body: json.RawMessage(tt.body)}}
			e := newRelayServer(newTestConfig(), upstream)

			req := test.NewJSONKeyRequest(http.MethodPost, tryon.RelayRoutePath, "sk-test", generationBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestGenerateProxyError(t *testing.T) {
	upstream := &test.UpstreamMock{Err: errors.New("dial tcp 10.0.0.1:443: connect: connection refused")}
	e := newRelayServer(newTestConfig(), upstream)

	req := test.NewJSONKeyRequest(http.MethodPost, tryon.RelayRoutePath, "sk-test", generationBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	response := decodeRelayError(t, rec)
	assert.Equal(t, models.KindProxyError, response.Error)
	assert.Equal(t, "Internal proxy server error", response.Message)
	assert.Contains(t, response.Details, "connection refused")
}

func TestGenerateInvalidJSONBody(t *testing.T) {
	upstream := &test.UpstreamMock{}
	e := newRelayServer(newTestConfig(), upstream)

	req := test.NewRawJSONRequest(http.MethodPost, tryon.RelayRoutePath, `{"model":`)
	req.Header.Set(tryon.APIKeyHeader, "sk-test")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	response := decodeRelayError(t, rec)
	assert.Equal(t, models.KindInternalError, response.Error)
	assert.Equal(t, 0, upstream.Calls())
}

func TestGenerateEmptyBodyForwardsEmptyObject(t *testing.T) {
	upstream := &test.UpstreamMock{}
	e := newRelayServer(newTestConfig(), upstream)

	req := test.NewRawJSONRequest(http.MethodPost, tryon.RelayRoutePath, "")
	req.Header.Set(tryon.APIKeyHeader, "sk-test")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "{}", string(upstream.LastBody))
}

func TestGenerateBodyTooLarge(t *testing.T) {
	cfg := newTestConfig()
	cfg.Relay.BodyLimit = "1K"
	upstream := &test.UpstreamMock{}
	e := newRelayServer(cfg, upstream)

	body := `{"prompt":"` + strings.Repeat("a", 2048) + `"}`
	req := test.NewRawJSONRequest(http.MethodPost, tryon.RelayRoutePath, body)
	req.Header.Set(tryon.APIKeyHeader, "sk-test")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, models.KindPayloadTooLarge, decodeRelayError(t, rec).Error)
	assert.Equal(t, 0, upstream.Calls())
}

func TestUnknownRoutesNotFound(t *testing.T) {
	e := newRelayServer(newTestConfig(), &test.UpstreamMock{})

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/does-not-exist"},
		{http.MethodPost, "/api/seedream/other"},
		{http.MethodGet, tryon.RelayRoutePath},
	} {
		req := httptest.NewRequest(r.method, r.path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", r.method, r.path)
		response := decodeRelayError(t, rec)
		assert.Equal(t, models.KindNotFound, response.Error)
		assert.NotEmpty(t, response.AvailableEndpoints)
		assert.True(t, test.Contains(response.AvailableEndpoints, "GET /health - Health check"))
		assert.True(t, test.Contains(response.AvailableEndpoints, "POST /generate - SeedREAM API proxy (alias)"))
	}
}

func TestCORSPreflightAllowsCredentialHeader(t *testing.T) {
	e := newRelayServer(newTestConfig(), &test.UpstreamMock{})

	req := httptest.NewRequest(http.MethodOptions, tryon.RelayRoutePath, nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", rec.Header().Get(echo.HeaderAccessControlAllowCredentials))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowHeaders), tryon.APIKeyHeader)
}

func TestGenerateThroughSeedreamUpstream(t *testing.T) {
	var gotAuth, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":[{"url":"X"}]}`))
	}))
	defer srv.Close()
	e := newRelayServer(newTestConfig(), services.NewSeedreamUpstream(srv.URL, config.DefaultUserAgent, srv.Client()))

	req := test.NewJSONKeyRequest(http.MethodPost, tryon.RelayRoutePath, "sk-real", generationBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"data":[{"url":"X"}]}`, rec.Body.String())
	assert.Equal(t, "Bearer sk-real", gotAuth)
	assert.Equal(t, config.DefaultUserAgent, gotAgent)
}

func TestGenerateNonJSONUpstreamIsProxyError(t *testing.T) {
	srv, calls := test.NewStubProvider(http.StatusBadGateway, `<html>bad gateway</html>`)
	defer srv.Close()
	e := newRelayServer(newTestConfig(), services.NewSeedreamUpstream(srv.URL, config.DefaultUserAgent, nil))

	req := test.NewJSONKeyRequest(http.MethodPost, tryon.RelayRoutePath, "sk-test", generationBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, models.KindProxyError, decodeRelayError(t, rec).Error)
	assert.Equal(t, int32(1), *calls)
}

func TestRelayClientAgainstRelayEndpoint(t *testing.T) {
	upstream := &test.UpstreamMock{Reply: &services.UpstreamReply{
		StatusCode: http.StatusOK,
		Body:       json.RawMessage(`{"data":[{"url":"https://cdn.example.com/final.png"}]}`),
	}}
	relay := httptest.NewServer(newRelayServer(newTestConfig(), upstream))
	defer relay.Close()

	client := tryon.NewClient(config.ClientConfig{APIKey: "sk-kiosk", RelayURL: relay.URL + tryon.RelayRoutePath})
	url, err := client.GenerateTryOnImage(t.Context(), tryon.Request{
		PersonImageBase64: tryon.ConvertToAPIBase64Format("AAAA"),
		OutfitImageURL:    "https://cdn.example.com/outfit.png",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/final.png", url)
	assert.Equal(t, "sk-kiosk", upstream.LastKey)
}

func TestRelayClientThroughGenerateAlias(t *testing.T) {
	upstream := &test.UpstreamMock{}
	relay := httptest.NewServer(newRelayServer(newTestConfig(), upstream))
	defer relay.Close()

	client := tryon.NewClient(config.ClientConfig{APIKey: "sk-kiosk", RelayURL: relay.URL + "/generate"})
	url, err := client.GenerateTryOnImage(t.Context(), tryon.Request{PersonImageBase64: "data:image/png;base64,AA", OutfitImageURL: "https://o"})

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/result.png", url)
	assert.Equal(t, "sk-kiosk", upstream.LastKey)
}

func TestRelayClientSeesProxyErrorDetails(t *testing.T) {
	upstream := &test.UpstreamMock{Err: errors.New("dial tcp 10.0.0.1:443: connect: connection refused")}
	relay := httptest.NewServer(newRelayServer(newTestConfig(), upstream))
	defer relay.Close()

	client := tryon.NewClient(config.ClientConfig{APIKey: "sk-kiosk", RelayURL: relay.URL + tryon.RelayRoutePath})
	_, err := client.GenerateTryOnImage(t.Context(), tryon.Request{PersonImageBase64: "data:image/png;base64,AA", OutfitImageURL: "https://o"})

	var tryErr *tryon.Error
	require.ErrorAs(t, err, &tryErr)
	assert.Equal(t, string(models.KindProxyError), tryErr.Code)
	assert.Equal(t, "Internal proxy server error", tryErr.Message)
	assert.Contains(t, tryErr.Details, "connection refused")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGenerateAcceptsBearerKey(t *testing.T) {
	upstream := &test.UpstreamMock{}
	e := newRelayServer(newTestConfig(), upstream)

	req := test.NewJSONRequest(http.MethodPost, "/generate", generationBody)
	req.Header.Set(echo.HeaderAuthorization, "Bearer sk-bearer")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sk-bearer", upstream.LastKey)

	req = test.NewJSONKeyRequest(http.MethodPost, tryon.RelayRoutePath, "sk-header", generationBody)
	req.Header.Set(echo.HeaderAuthorization, "Bearer sk-bearer")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sk-header", upstream.LastKey)

	req = test.NewJSONRequest(http.MethodPost, "/generate", generationBody)
	req.Header.Set(echo.HeaderAuthorization, "Basic dXNlcjpwYXNz")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, models.KindAPIKeyMissing, decodeRelayError(t, rec).Error)
}

func TestRateLimitedRequests(t *testing.T) {
	cfg := newTestConfig()
	cfg.Relay.RateLimit = 1
	upstream := &test.UpstreamMock{}
	e := newRelayServer(cfg, upstream)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := test.NewJSONKeyRequest(http.MethodPost, tryon.RelayRoutePath, "sk-test", generationBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			response := decodeRelayError(t, rec)
			assert.Equal(t, models.KindRateLimited, response.Error)
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, statuses)
	assert.Equal(t, 1, upstream.Calls())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := test.NewStubProvider(http.StatusOK, `{"data":[{"url":"X"}]}`)
	defer srv.Close()
	enqueuer := &test.EnqueuerMock{}
	e := SetupServer(newTestConfig(), services.NewSeedreamUpstream(srv.URL, config.DefaultUserAgent, nil),
		enqueuer, &test.JobCacheMock{}, zap.NewNop())

	relayed := testutil.ToFloat64(services.RelayRequestsTotal.WithLabelValues(services.OutcomeRelayed))
	missingKey := testutil.ToFloat64(services.RelayRequestsTotal.WithLabelValues(services.OutcomeMissingKey))
	enqueued := testutil.ToFloat64(services.TryOnJobsTotal.WithLabelValues(services.OutcomeEnqueued))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, test.NewJSONKeyRequest(http.MethodPost, tryon.RelayRoutePath, "sk-test", generationBody))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, test.NewJSONRequest(http.MethodPost, tryon.RelayRoutePath, generationBody))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, test.NewJSONRequest(http.MethodPost, "/api/tryon/jobs", models.TryOnJobIn{
		PersonImageBase64: "AAAA",
		OutfitImageURL:    "https://cdn.example.com/outfit.png",
	}))
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, relayed+1, testutil.ToFloat64(services.RelayRequestsTotal.WithLabelValues(services.OutcomeRelayed)))
	assert.Equal(t, missingKey+1, testutil.ToFloat64(services.RelayRequestsTotal.WithLabelValues(services.OutcomeMissingKey)))
	assert.Equal(t, enqueued+1, testutil.ToFloat64(services.TryOnJobsTotal.WithLabelValues(services.OutcomeEnqueued)))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `tryon_relay_requests_total{outcome="relayed"}`)
	assert.Contains(t, body, `tryon_relay_requests_total{outcome="missing_key"}`)
	assert.Contains(t, body, `tryon_upstream_request_duration_seconds_count{status="200"}`)
	assert.Contains(t, body, `tryon_jobs_total{outcome="enqueued"}`)
}

func TestPanicIsLoggedAndRendered(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	e := SetupServer(newTestConfig(), &test.UpstreamMock{}, nil, nil, zap.New(core))
	e.GET("/boom", func(c echo.Context) error {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, models.KindInternalError, decodeRelayError(t, rec).Error)

	recovered := logs.FilterMessage("Recovered from panic").All()
	require.Len(t, recovered, 1)
	assert.Contains(t, recovered[0].ContextMap()["error"], "kaboom")
	assert.NotEmpty(t, recovered[0].ContextMap()["stack"])
}
