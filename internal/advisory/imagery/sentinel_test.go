package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agri-scout/internal/advisory"
	"github.com/i474232898/agri-scout/internal/transport"
)

var punjab = advisory.Coordinate{Latitude: 31.5, Longitude: 75.8}

func solidPNG(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeHub struct {
	tokenStatus   int
	processStatus int
	raster        func() []byte
	tokenCalls    atomic.Int32
	processCalls  atomic.Int32
	lastBody      atomic.Value
}

func (h *fakeHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		h.tokenCalls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "id", r.PostForm.Get("client_id"))
		if h.tokenStatus != 0 {
			w.WriteHeader(h.tokenStatus)
			return
		}
		w.Write([]byte(`{"access_token":"tok-123","expires_in":3600}`))
	})
	mux.HandleFunc("/api/v1/process", func(w http.ResponseWriter, r *http.Request) {
		h.processCalls.Add(1)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		h.lastBody.Store(body)
		if h.processStatus != 0 {
			w.WriteHeader(h.processStatus)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(h.raster())
	})
	return mux
}

func newFetcher(t *testing.T, srv *httptest.Server, dir string) *Sentinel {
	t.Helper()
	s := NewSentinel(Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     srv.URL + "/oauth/token",
		ProcessURL:   srv.URL + "/api/v1/process",
		StaticDir:    dir,
		DemoImage:    filepath.Join(dir, "scout_demo_map.png"),
		Timeout:      2 * time.Second,
	}, transport.New("sentinel", srv.Client(), false), nil)
	s.now = func() time.Time { return time.Date(2025, time.March, 31, 12, 0, 0, 0, time.UTC) }
	return s
}

func wantBBox(c advisory.Coordinate) advisory.BoundingBox {
	return advisory.BoundingBox{
		{c.Latitude - 0.01, c.Longitude - 0.01},
		{c.Latitude + 0.01, c.Longitude + 0.01},
	}
}

func TestFetch_Success(t *testing.T) {
	raster := solidPNG(t, color.NRGBA{R: 0, G: 204, B: 0, A: 255})
	hub := &fakeHub{raster: func() []byte { return raster }}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	dir := t.TempDir()
	got := newFetcher(t, srv, dir).Fetch(context.Background(), punjab)

	require.True(t, got.IsLive)
	assert.Equal(t, wantBBox(punjab), got.BoundingBox)
	assert.InDelta(t, 0.7, got.MeanIndex, 1e-9)
	assert.Equal(t, filepath.Join(dir, LiveImageName), got.ImagePath)

	written, err := os.ReadFile(got.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, raster, written)

	var req processRequest
	require.NoError(t, json.Unmarshal(hub.lastBody.Load().([]byte), &req))
	assert.Equal(t, [4]float64{75.8 - 0.01, 31.5 - 0.01, 75.8 + 0.01, 31.5 + 0.01}, req.Input.Bounds.BBox)
	require.Len(t, req.Input.Data, 1)
	assert.Equal(t, "sentinel-2-l2a", req.Input.Data[0].Type)
	assert.Equal(t, "leastCC", req.Input.Data[0].DataFilter.MosaickingOrder)
	assert.Equal(t, "2025-03-01T00:00:00Z", req.Input.Data[0].DataFilter.TimeRange.From)
	assert.Equal(t, "2025-03-31T23:59:59Z", req.Input.Data[0].DataFilter.TimeRange.To)
	assert.Equal(t, 512, req.Output.Width)
	assert.Equal(t, "image/png", req.Output.Responses[0].Format.Type)
	assert.Contains(t, req.Evalscript, "B08")
}

func TestFetch_FallsBackToDemo(t *testing.T) {
	tests := []struct {
		name        string
		hub         *fakeHub
		wantProcess int32
	}{
		{"auth rejected", &fakeHub{tokenStatus: http.StatusUnauthorized}, 0},
		{"auth server error", &fakeHub{tokenStatus: http.StatusInternalServerError}, 0},
		{"render fails", &fakeHub{processStatus: http.StatusBadRequest}, 1},
		{"render not an image", &fakeHub{raster: func() []byte { return []byte("<html>oops</html>") }}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.hub.handler(t))
			defer srv.Close()

			dir := t.TempDir()
			demo := filepath.Join(dir, "scout_demo_map.png")
			require.NoError(t, os.WriteFile(demo, solidPNG(t, color.NRGBA{A: 255}), 0o644))

			got := newFetcher(t, srv, dir).Fetch(context.Background(), punjab)
			assert.False(t, got.IsLive)
			assert.Equal(t, demo, got.ImagePath)
			assert.Equal(t, "/static/scout_demo_map.png", got.ImageURL)
			assert.Equal(t, 0.72, got.MeanIndex)
			assert.Equal(t, "Simulated Data (API Unavailable)", got.Message)
			assert.Equal(t, wantBBox(punjab), got.BoundingBox)

			assert.Equal(t, int32(1), tt.hub.tokenCalls.Load(), "token endpoint is tried exactly once")
			assert.Equal(t, tt.wantProcess, tt.hub.processCalls.Load())

			_, err := os.Stat(filepath.Join(dir, LiveImageName))
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestFetch_MissingCredentialsSkipsNetwork(t *testing.T) {
	hub := &fakeHub{}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	s := newFetcher(t, srv, t.TempDir())
	s.cfg.ClientSecret = ""

	got := s.Fetch(context.Background(), punjab)
	assert.False(t, got.IsLive)
	assert.Zero(t, hub.tokenCalls.Load())
}

func TestFetch_DemoAssetAbsent(t *testing.T) {
	hub := &fakeHub{tokenStatus: http.StatusServiceUnavailable}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	got := newFetcher(t, srv, t.TempDir()).Fetch(context.Background(), punjab)
	assert.False(t, got.IsLive)
	assert.Empty(t, got.ImagePath)
	assert.Empty(t, got.ImageURL)
	assert.Equal(t, demoMessage, got.Message)
}

func TestFetch_ConcurrentWritesLeaveWholeFile(t *testing.T) {
	colors := []color.NRGBA{
		{R: 0, G: 204, B: 0, A: 255},
		{R: 128, G: 230, B: 0, A: 255},
		{R: 230, G: 230, B: 0, A: 255},
		{R: 204, G: 0, B: 0, A: 255},
	}
	payloads := make([][]byte, len(colors))
	for i, c := range colors {
		payloads[i] = solidPNG(t, c)
	}

	var next atomic.Int32
	hub := &fakeHub{raster: func() []byte {
		return payloads[int(next.Add(1))%len(payloads)]
	}}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	dir := t.TempDir()
	s := newFetcher(t, srv, dir)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, s.Fetch(context.Background(), punjab).IsLive)
		}()
	}
	wg.Wait()

	final, err := os.ReadFile(filepath.Join(dir, LiveImageName))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(final))
	require.NoError(t, err)
	assert.Contains(t, payloads, final)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

type recordingSink struct {
	names []string
	err   error
}

func (r *recordingSink) Upload(ctx context.Context, name string, data []byte) (string, error) {
	r.names = append(r.names, name)
	if r.err != nil {
		return "", r.err
	}
	return "https://objects.example/" + name, nil
}

func TestFetch_Mirror(t *testing.T) {
	raster := solidPNG(t, color.NRGBA{R: 204, A: 255})
	hub := &fakeHub{raster: func() []byte { return raster }}
	srv := httptest.NewServer(hub.handler(t))
	defer srv.Close()

	sink := &recordingSink{}
	s := newFetcher(t, srv, t.TempDir())
	s.sink = sink

	got := s.Fetch(context.Background(), punjab)
	require.True(t, got.IsLive)
	require.Len(t, sink.names, 1)
	assert.Equal(t, "https://objects.example/"+sink.names[0], got.ImageURL)

	sink.err = errors.New("bucket gone")
	got = s.Fetch(context.Background(), punjab)
	assert.True(t, got.IsLive, "mirror failure is never fatal")
	assert.Equal(t, "/static/live_satellite.png", got.ImageURL)
}

func TestMeanIndex(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 204, B: 0, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 204, G: 0, B: 0, A: 255})
	img.SetNRGBA(2, 0, color.NRGBA{R: 230, G: 230, B: 0, A: 255})
	// (3,0) stays transparent.
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	mean, err := MeanIndex(buf.Bytes())
	require.NoError(t, err)
	assert.InDelta(t, (0.7+0.1+0.3)/3, mean, 1e-9)

	empty := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	buf.Reset()
	require.NoError(t, png.Encode(&buf, empty))
	mean, err = MeanIndex(buf.Bytes())
	require.NoError(t, err)
	assert.Zero(t, mean)

	_, err = MeanIndex([]byte("not a png"))
	assert.Error(t, err)
}

func TestWriteAtomic_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "static", LiveImageName)
	require.NoError(t, WriteAtomic(path, []byte("first")))
	require.NoError(t, WriteAtomic(path, []byte("second")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestMinioSink_Upload(t *testing.T) {
	var putPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["location"]; ok {
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
			return
		}
		if r.Method == http.MethodPut {
			putPath.Store(r.URL.Path)
			io.Copy(io.Discard, r.Body)
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotImplemented)
	}))
	defer srv.Close()

	sink, err := NewMinioSink(srv.URL, "access", "secret", "ndvi-rasters", false)
	require.NoError(t, err)

	u, err := sink.Upload(context.Background(), "ndvi/test.png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/ndvi-rasters/ndvi/test.png", putPath.Load())
	assert.Contains(t, u, "/ndvi-rasters/ndvi/test.png")
}
