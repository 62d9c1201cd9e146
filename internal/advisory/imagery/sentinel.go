// Package imagery fetches rendered NDVI rasters from Sentinel Hub.
//
// A fetch walks NeedAuth -> Authenticated -> Requesting -> Done, one attempt
// per state. Any failure moves to Failed, which reports the packaged demo
// image instead.
package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/twpayne/go-geom"

	"github.com/i474232898/agri-scout/internal/advisory"
	"github.com/i474232898/agri-scout/internal/transport"
)

const (
	defaultTokenURL   = "https://services.sentinel-hub.com/oauth/token"
	defaultProcessURL = "https://services.sentinel-hub.com/api/v1/process"

	// LiveImageName is the file every successful fetch overwrites.
	LiveImageName = "live_satellite.png"

	// DefaultDemoImage is the packaged fallback raster.
	DefaultDemoImage = "static/scout_demo_map.png"

	// publicPrefix is where the surrounding application serves StaticDir.
	publicPrefix = "/static/"

	halfWidth   = 0.01
	lookback    = 30 * 24 * time.Hour
	rasterSize  = 512
	demoMean    = 0.72
	liveMessage = "Live Sentinel-2 Data Acquired"
	demoMessage = "Simulated Data (API Unavailable)"
)

const evalscript = `//VERSION=3
function setup() {
  return {
    input: ["B04", "B08"],
    output: { bands: 4 }
  };
}

function evaluatePixel(sample) {
  let ndvi = (sample.B08 - sample.B04) / (sample.B08 + sample.B04);
  if (ndvi > 0.6) return [0, 0.8, 0, 1];
  if (ndvi > 0.4) return [0.5, 0.9, 0, 1];
  if (ndvi > 0.2) return [0.9, 0.9, 0, 1];
  return [0.8, 0, 0, 1];
}`

var (
	ErrMissingCredentials = errors.New("sentinel hub credentials not configured")
	errNoToken            = errors.New("token response has no access_token")
)

// Sink mirrors a live raster to external storage and returns its URL.
type Sink interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// Config configures a Sentinel fetcher.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	ProcessURL   string
	// StaticDir receives LiveImageName.
	StaticDir string
	// DemoImage is reported on failure; it is blanked when the file is absent.
	DemoImage string
	Timeout   time.Duration
}

type state int

const (
	stateNeedAuth state = iota
	stateAuthenticated
	stateRequesting
	stateDone
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateNeedAuth:
		return "NeedAuth"
	case stateAuthenticated:
		return "Authenticated"
	case stateRequesting:
		return "Requesting"
	case stateDone:
		return "Done"
	default:
		return "Failed"
	}
}

// Sentinel implements advisory.ImageryFetcher.
type Sentinel struct {
	cfg    Config
	client *transport.Client
	sink   Sink
	now    func() time.Time
}

// NewSentinel creates a fetcher. sink may be nil.
func NewSentinel(cfg Config, client *transport.Client, sink Sink) *Sentinel {
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.ProcessURL == "" {
		cfg.ProcessURL = defaultProcessURL
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "static"
	}
	if cfg.DemoImage == "" {
		cfg.DemoImage = DefaultDemoImage
	}
	return &Sentinel{cfg: cfg, client: client, sink: sink, now: time.Now}
}

// fetch carries the data produced while walking the states.
type fetch struct {
	bounds  *geom.Bounds
	token   string
	payload []byte
	raster  []byte
	image   advisory.SatelliteImage
}

// Fetch never fails: any error yields the demo image with IsLive false.
func (s *Sentinel) Fetch(ctx context.Context, coord advisory.Coordinate) advisory.SatelliteImage {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	f := &fetch{bounds: boundsAround(coord)}
	st := stateNeedAuth
	var err error
	for st != stateDone && st != stateFailed {
		from := st
		st, err = s.step(ctx, st, f)
		if err != nil {
			slog.Warn("satellite imagery unavailable, using demo image", "state", from.String(), "coord", coord.String(), "error", err)
			st = stateFailed
		}
	}

	if st == stateFailed {
		return s.demo(f.bounds)
	}
	return f.image
}

func (s *Sentinel) step(ctx context.Context, st state, f *fetch) (state, error) {
	switch st {
	case stateNeedAuth:
		token, err := s.authenticate(ctx)
		if err != nil {
			return stateFailed, err
		}
		f.token = token
		return stateAuthenticated, nil

	case stateAuthenticated:
		payload, err := s.processRequest(f.bounds)
		if err != nil {
			return stateFailed, err
		}
		f.payload = payload
		return stateRequesting, nil

	case stateRequesting:
		raster, err := s.render(ctx, f.token, f.payload)
		if err != nil {
			return stateFailed, err
		}
		mean, err := MeanIndex(raster)
		if err != nil {
			return stateFailed, fmt.Errorf("decode raster: %w", err)
		}
		path := filepath.Join(s.cfg.StaticDir, LiveImageName)
		if err := WriteAtomic(path, raster); err != nil {
			return stateFailed, fmt.Errorf("persist raster: %w", err)
		}
		f.raster = raster
		f.image = advisory.SatelliteImage{
			ImagePath:   path,
			ImageURL:    publicPrefix + LiveImageName,
			BoundingBox: toBoundingBox(f.bounds),
			MeanIndex:   mean,
			IsLive:      true,
			Message:     liveMessage,
		}
		s.mirror(ctx, f)
		return stateDone, nil
	}
	return stateFailed, fmt.Errorf("unexpected state %s", st)
}

func (s *Sentinel) authenticate(ctx context.Context) (string, error) {
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return "", ErrMissingCredentials
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.cfg.ClientID)
	form.Set("client_secret", s.cfg.ClientSecret)

	req, err := http.NewRequest(http.MethodPost, s.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := transport.DecodeJSON(resp, &tok); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errNoToken
	}
	return tok.AccessToken, nil
}

type processRequest struct {
	Input struct {
		Bounds struct {
			BBox       [4]float64        `json:"bbox"`
			Properties map[string]string `json:"properties"`
		} `json:"bounds"`
		Data []processData `json:"data"`
	} `json:"input"`
	Output struct {
		Width     int               `json:"width"`
		Height    int               `json:"height"`
		Responses []processResponse `json:"responses"`
	} `json:"output"`
	Evalscript string `json:"evalscript"`
}

type processData struct {
	Type       string `json:"type"`
	DataFilter struct {
		TimeRange struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"timeRange"`
		MosaickingOrder string `json:"mosaickingOrder"`
	} `json:"dataFilter"`
}

type processResponse struct {
	Identifier string `json:"identifier"`
	Format     struct {
		Type string `json:"type"`
	} `json:"format"`
}

func (s *Sentinel) processRequest(b *geom.Bounds) ([]byte, error) {
	today := s.now().UTC()
	past := today.Add(-lookback)

	var pr processRequest
	pr.Input.Bounds.BBox = [4]float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)}
	pr.Input.Bounds.Properties = map[string]string{"crs": "http://www.opengis.net/def/crs/EPSG/0/4326"}

	var d processData
	d.Type = "sentinel-2-l2a"
	d.DataFilter.TimeRange.From = past.Format("2006-01-02") + "T00:00:00Z"
	d.DataFilter.TimeRange.To = today.Format("2006-01-02") + "T23:59:59Z"
	d.DataFilter.MosaickingOrder = "leastCC"
	pr.Input.Data = []processData{d}

	var r processResponse
	r.Identifier = "default"
	r.Format.Type = "image/png"
	pr.Output.Width = rasterSize
	pr.Output.Height = rasterSize
	pr.Output.Responses = []processResponse{r}
	pr.Evalscript = evalscript

	return json.Marshal(pr)
}

func (s *Sentinel) render(ctx context.Context, token string, payload []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, s.cfg.ProcessURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("process request: %w", err)
	}
	return transport.ReadBody(resp)
}

// mirror uploads the live raster when a sink is configured. Failures are
// logged and leave the local result untouched.
func (s *Sentinel) mirror(ctx context.Context, f *fetch) {
	if s.sink == nil {
		return
	}
	name := fmt.Sprintf("ndvi/%s-%s.png", s.now().UTC().Format("20060102T150405"), coordKey(f.bounds))
	u, err := s.sink.Upload(ctx, name, f.raster)
	if err != nil {
		slog.Warn("raster mirror upload failed", "object", name, "error", err)
		return
	}
	f.image.ImageURL = u
}

func (s *Sentinel) demo(b *geom.Bounds) advisory.SatelliteImage {
	img := advisory.SatelliteImage{
		BoundingBox: toBoundingBox(b),
		MeanIndex:   demoMean,
		IsLive:      false,
		Message:     demoMessage,
	}
	if _, err := os.Stat(s.cfg.DemoImage); err == nil {
		img.ImagePath = s.cfg.DemoImage
		img.ImageURL = publicPrefix + filepath.Base(s.cfg.DemoImage)
	}
	return img
}

// boundsAround returns the lon/lat box of half-width 0.01 degrees.
func boundsAround(c advisory.Coordinate) *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(
		c.Longitude-halfWidth, c.Latitude-halfWidth,
		c.Longitude+halfWidth, c.Latitude+halfWidth,
	)
}

func toBoundingBox(b *geom.Bounds) advisory.BoundingBox {
	return advisory.BoundingBox{
		{b.Min(1), b.Min(0)},
		{b.Max(1), b.Max(0)},
	}
}

func coordKey(b *geom.Bounds) string {
	return fmt.Sprintf("%.4f_%.4f", (b.Min(1)+b.Max(1))/2, (b.Min(0)+b.Max(0))/2)
}
