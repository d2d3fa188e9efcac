package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/grainscale/pkg/cache"
	"github.com/matzehuels/grainscale/pkg/errors"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T, cfg Config, c cache.Cache) *httptest.Server {
	t.Helper()
	s, err := New(cfg, c, log.New(io.Discard))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, query string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/v1/degrade?"+query, "image/png", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readAll(t *testing.T, r io.Reader) []byte {
	t.Helper()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Server"); !strings.HasPrefix(got, "grainscale/") {
		t.Errorf("Server header = %q", got)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestDegrade(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)
	src := testPNG(t, 16, 16)

	tests := []struct {
		name   string
		query  string
		wantW  int
		wantH  int
		header string
		want   string
	}{
		{"own size", "", 16, 16, HeaderKind, "gaussian"},
		{"square size", "size=32", 32, 32, HeaderKind, "gaussian"},
		{"output size", "size=32&output_size=8&median=3", 8, 8, HeaderStrategy, "power_law(base=256, alpha=0.60)"},
		{"fixed grain", "size=24&strategy=fixed_grain&base_size=8", 24, 24, HeaderStrategy, "fixed_grain(base=8)"},
		{"lenient kind", "kind=bogus", 16, 16, HeaderKind, "gaussian"},
		{"poisson", "kind=poisson&strategy=matrix_repeat", 16, 16, HeaderKind, "poisson"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts, tt.query, src)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d: %s", resp.StatusCode, readAll(t, resp.Body))
			}
			if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
				t.Errorf("Content-Type = %q", ct)
			}
			if got := resp.Header.Get(tt.header); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
			}
			cfg, err := png.DecodeConfig(resp.Body)
			if err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestDegradeMultipart(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "cat.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(testPNG(t, 16, 16))
	mw.Close()

	resp, err := http.Post(ts.URL+"/v1/degrade?size=20", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, readAll(t, resp.Body))
	}
	cfg, err := png.DecodeConfig(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 20 {
		t.Errorf("width = %d, want 20", cfg.Width)
	}
}

func TestDegradeSeededIsCached(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, Config{}, fc)
	src := testPNG(t, 16, 16)

	first := post(t, ts, "size=32&seed=7", src)
	if got := first.Header.Get(HeaderCache); got != "miss" {
		t.Errorf("first %s = %q, want miss", HeaderCache, got)
	}
	a := readAll(t, first.Body)

	second := post(t, ts, "size=32&seed=7", src)
	if got := second.Header.Get(HeaderCache); got != "hit" {
		t.Errorf("second %s = %q, want hit", HeaderCache, got)
	}
	for _, h := range []string{HeaderKind, HeaderParams, HeaderStrategy} {
		if got, want := second.Header.Get(h), first.Header.Get(h); got == "" || got != want {
			t.Errorf("hit %s = %q, miss had %q", h, got, want)
		}
	}
	if b := readAll(t, second.Body); !bytes.Equal(a, b) {
		t.Error("cached response differs from the first")
	}

	other := post(t, ts, "size=32&seed=8", src)
	if got := other.Header.Get(HeaderCache); got != "miss" {
		t.Errorf("different seed %s = %q, want miss", HeaderCache, got)
	}
}

func TestCacheNamespacesAreSeparate(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	a := newTestServer(t, Config{CacheNamespace: "a"}, fc)
	b := newTestServer(t, Config{CacheNamespace: "b"}, fc)
	src := testPNG(t, 16, 16)

	post(t, a, "seed=4", src)
	if got := post(t, b, "seed=4", src).Header.Get(HeaderCache); got != "miss" {
		t.Errorf("other namespace %s = %q, want miss", HeaderCache, got)
	}
	if got := post(t, a, "seed=4", src).Header.Get(HeaderCache); got != "hit" {
		t.Errorf("same namespace %s = %q, want hit", HeaderCache, got)
	}
}

func TestDegradeSeedIsDeterministic(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)
	src := testPNG(t, 16, 16)

	a := readAll(t, post(t, ts, "size=24&seed=3&kind=mixed", src).Body)
	b := readAll(t, post(t, ts, "size=24&seed=3&kind=mixed", src).Body)
	if !bytes.Equal(a, b) {
		t.Error("same seed produced different images")
	}

	unseeded := post(t, ts, "size=24", src)
	if got := unseeded.Header.Get(HeaderCache); got != "bypass" {
		t.Errorf("unseeded %s = %q, want bypass", HeaderCache, got)
	}
}

func TestDegradeErrors(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)
	src := testPNG(t, 8, 8)

	tests := []struct {
		name   string
		query  string
		body   []byte
		status int
		code   errors.Code
	}{
		{"strict unknown kind", "kind=bogus&strict=true", src, http.StatusBadRequest, errors.ErrCodeInvalidNoiseKind},
		{"strategy conflict", "strategy=fixed_grain&strategy=power_law", src, http.StatusBadRequest, errors.ErrCodeConfigurationConflict},
		{"unknown strategy", "strategy=wavelet", src, http.StatusBadRequest, errors.ErrCodeInvalidConfig},
		{"negative size", "size=-4", src, http.StatusBadRequest, errors.ErrCodeInvalidDimension},
		{"size over limit", "size=100000", src, http.StatusBadRequest, errors.ErrCodeInvalidDimension},
		{"size overflowing buffer", "size=3037000500", src, http.StatusBadRequest, errors.ErrCodeInvalidDimension},
		{"output size over limit", "output_size=100000", src, http.StatusBadRequest, errors.ErrCodeInvalidDimension},
		{"even median", "median=4", src, http.StatusBadRequest, errors.ErrCodeInvalidConfig},
		{"bad seed", "seed=abc", src, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"bad intensity", "intensity=lots", src, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"probability out of range", "kind=salt_pepper&intensity=2", src, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"negative alpha", "alpha=-1", src, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"empty body", "", nil, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"not an image", "", []byte("definitely not a png"), http.StatusUnprocessableEntity, errors.ErrCodeImageLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts, tt.query, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			body := decodeError(t, resp)
			if body.Code != tt.code {
				t.Errorf("code = %q, want %q (%s)", body.Code, tt.code, body.Error)
			}
			if body.Error == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestDegradeSourceOverLimit(t *testing.T) {
	ts := newTestServer(t, Config{MaxSize: 16}, nil)

	resp := post(t, ts, "size=8", testPNG(t, 32, 16))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body := decodeError(t, resp); body.Code != errors.ErrCodeInvalidDimension {
		t.Errorf("code = %q, want %q", body.Code, errors.ErrCodeInvalidDimension)
	}

	if resp := post(t, ts, "", testPNG(t, 16, 16)); resp.StatusCode != http.StatusOK {
		t.Errorf("image at the limit: status = %d, want 200", resp.StatusCode)
	}
}

func TestDegradeBodyTooLarge(t *testing.T) {
	ts := newTestServer(t, Config{MaxBodyBytes: 64}, nil)

	resp := post(t, ts, "", testPNG(t, 32, 32))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
}

func TestRouting(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)

	resp, err := http.Get(ts.URL + "/v2/nothing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/v1/degrade")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET degrade status = %d, want 405", resp.StatusCode)
	}
}

func TestConfigValidateAndSetDefaults(t *testing.T) {
	var cfg Config
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != DefaultAddr || cfg.MaxBodyBytes != DefaultMaxBodyBytes || cfg.Timeout != DefaultTimeout ||
		cfg.MaxSize != DefaultMaxSize {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	for _, bad := range []Config{{MaxBodyBytes: -1}, {MaxSize: -1}} {
		if err := bad.ValidateAndSetDefaults(); !errors.Is(err, errors.ErrCodeInvalidConfig) {
			t.Errorf("%+v: err = %v, want INVALID_CONFIG", bad, err)
		}
	}
}

func TestParseDegradeParamsSizeLimit(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		ok    bool
	}{
		{"at limit", url.Values{"size": {"64"}, "output_size": {"64"}}, true},
		{"size above", url.Values{"size": {"65"}}, false},
		{"output size above", url.Values{"output_size": {"65"}}, false},
		{"both huge", url.Values{"size": {"100000"}, "output_size": {"100000"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDegradeParams(tt.query, 64)
			if tt.ok && err != nil {
				t.Fatalf("err = %v", err)
			}
			if !tt.ok && !errors.Is(err, errors.ErrCodeInvalidDimension) {
				t.Errorf("err = %v, want INVALID_DIMENSION", err)
			}
		})
	}
}
