package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agri-scout/internal/advisory"
)

type fakeAdvisor struct {
	scoutReq    advisory.ScoutRequest
	scoutErr    error
	diagnoseReq advisory.DiagnoseRequest
	diagnoseErr error
	adviceReq   advisory.AdviceRequest
}

func (f *fakeAdvisor) Scout(ctx context.Context, req advisory.ScoutRequest) (advisory.AdvisoryResponse, error) {
	f.scoutReq = req
	if f.scoutErr != nil {
		return advisory.AdvisoryResponse{}, f.scoutErr
	}
	return advisory.AdvisoryResponse{
		RequestID: "req-1",
		PlaceName: req.PlaceName,
		Recommendation: advisory.CropRecommendation{
			Zone:  advisory.ZoneNorthernPlains,
			Crops: []string{"Wheat", "Mustard"},
		},
		Weather:  advisory.WeatherReading{Condition: advisory.ConditionOffline},
		Degraded: []string{advisory.StageWeather},
	}, nil
}

func (f *fakeAdvisor) Diagnose(ctx context.Context, req advisory.DiagnoseRequest) (advisory.DiagnoseResponse, error) {
	f.diagnoseReq = req
	if f.diagnoseErr != nil {
		return advisory.DiagnoseResponse{}, f.diagnoseErr
	}
	return advisory.DiagnoseResponse{
		RequestID: "req-2",
		Diagnosis: advisory.DiagnosisResult{Label: "Late Blight", Confidence: 0.9, FallbackReason: advisory.FallbackNone},
		Treatment: advisory.TreatmentPlan{BodyMarkdown: "plan", Source: advisory.SourceGenerativeModel},
		Degraded:  []string{},
	}, nil
}

func (f *fakeAdvisor) Advise(ctx context.Context, req advisory.AdviceRequest) advisory.TreatmentPlan {
	f.adviceReq = req
	return advisory.TreatmentPlan{BodyMarkdown: "advice for " + req.Disease, Source: advisory.SourceOfflineTemplate}
}

func newApp(svc Advisor) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, svc, time.Second)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp, decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	return out
}

func TestScoutRoute(t *testing.T) {
	svc := &fakeAdvisor{}
	resp, body := postJSON(t, newApp(svc), "/api/v1/scout", `{"place_name":"Jalandhar","language":"Hindi"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Jalandhar", svc.scoutReq.PlaceName)
	assert.Equal(t, "Hindi", svc.scoutReq.Language)
	assert.Equal(t, "req-1", body["requestId"])
	assert.Equal(t, []any{"weather"}, body["degraded"])

	rec := body["recommendation"].(map[string]any)
	assert.Equal(t, "NorthernPlains", rec["zone"])
	assert.Contains(t, rec["crops"], "Wheat")
}

func TestScoutRoute_Coordinates(t *testing.T) {
	svc := &fakeAdvisor{}
	resp, _ := postJSON(t, newApp(svc), "/api/v1/scout", `{"lat":31.5,"lon":75.8}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.scoutReq.Lat)
	require.NotNil(t, svc.scoutReq.Lon)
	assert.Equal(t, 31.5, *svc.scoutReq.Lat)
	assert.Equal(t, 75.8, *svc.scoutReq.Lon)
}

func TestScoutRoute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		svcErr   error
		wantCode int
	}{
		{"not found", `{"place_name":"Xyzzy123NoPlace"}`, fmt.Errorf("%w: %q", advisory.ErrNotFound, "Xyzzy123NoPlace"), http.StatusNotFound},
		{"invalid request", `{}`, advisory.ErrInvalidRequest, http.StatusBadRequest},
		{"coordinate out of range", `{"lat":95,"lon":10}`, nil, http.StatusBadRequest},
		{"malformed json", `{"place_name":`, nil, http.StatusBadRequest},
		{"internal", `{"place_name":"x"}`, fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, newApp(&fakeAdvisor{scoutErr: tt.svcErr}), "/api/v1/scout", tt.body)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, true, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func multipartBody(t *testing.T, file []byte, ndvi string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if file != nil {
		part, err := w.CreateFormFile("file", "leaf.png")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	if ndvi != "" {
		require.NoError(t, w.WriteField("ndvi", ndvi))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestDiagnoseRoute(t *testing.T) {
	svc := &fakeAdvisor{}
	body, ct := multipartBody(t, []byte("fake-image-bytes"), "0.42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose", body)
	req.Header.Set("Content-Type", ct)
	resp, err := newApp(svc).Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte("fake-image-bytes"), svc.diagnoseReq.ImageBytes)
	assert.Equal(t, "0.42", svc.diagnoseReq.FieldHealth)

	out := decode(t, resp)
	assert.Equal(t, "Late Blight", out["diagnosis"].(map[string]any)["label"])
	assert.Equal(t, []any{}, out["degraded"])
}

func TestDiagnoseRoute_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		body, ct := multipartBody(t, nil, "0.4")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose", body)
		req.Header.Set("Content-Type", ct)
		resp, err := newApp(&fakeAdvisor{}).Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unreadable image", func(t *testing.T) {
		body, ct := multipartBody(t, []byte("garbage"), "")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose", body)
		req.Header.Set("Content-Type", ct)
		resp, err := newApp(&fakeAdvisor{diagnoseErr: advisory.ErrUnreadableImage}).Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAdviceRoute(t *testing.T) {
	svc := &fakeAdvisor{}
	resp, body := postJSON(t, newApp(svc), "/api/v1/advice", `{"disease":"Leaf Mold","ndvi":"0.35"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Leaf Mold", svc.adviceReq.Disease)
	assert.Equal(t, "0.35", svc.adviceReq.FieldHealth)
	assert.Equal(t, "advice for Leaf Mold", body["bodyMarkdown"])
	assert.Equal(t, "OfflineTemplate", body["source"])

	resp, _ = postJSON(t, newApp(svc), "/api/v1/advice", `{"ndvi":"0.35"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
