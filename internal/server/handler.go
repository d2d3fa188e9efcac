package server

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"image"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/matzehuels/grainscale/pkg/batch"
	"github.com/matzehuels/grainscale/pkg/buildinfo"
	"github.com/matzehuels/grainscale/pkg/cache"
	"github.com/matzehuels/grainscale/pkg/consistency"
	"github.com/matzehuels/grainscale/pkg/degrade"
	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/noise"
	"github.com/matzehuels/grainscale/pkg/observability"
	"github.com/matzehuels/grainscale/pkg/raster"
)

// Response headers describing a degraded image.
const (
	HeaderKind     = "X-Grainscale-Kind"
	HeaderParams   = "X-Grainscale-Params"
	HeaderStrategy = "X-Grainscale-Strategy"
	HeaderCache    = "X-Grainscale-Cache"
)

const cacheKeyType = "degrade"

// degradeParams is the parsed query string of a degrade request.
type degradeParams struct {
	size     int
	noise    batch.NoiseConfig
	policy   consistency.Policy
	opts     degrade.Options
	seed     uint64
	kind     noise.Kind
	fellBack bool
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Resolved(),
	})
}

func (s *Server) handleDegrade(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := parseDegradeParams(r.URL.Query(), s.cfg.MaxSize)
	if err != nil {
		respondErr(w, err)
		return
	}
	if p.fellBack {
		s.logger.Warn("unknown noise kind, using fallback", "kind", p.noise.Kind, "fallback", p.kind)
	}

	body, err := readImage(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		respondErr(w, err)
		return
	}

	src, err := sourceSize(body, s.cfg.MaxSize)
	if err != nil {
		respondErr(w, err)
		return
	}
	target := src
	if p.size > 0 {
		target = raster.Square(p.size)
	}
	label := p.policy.EffectiveParams(p.kind, p.noise.Params(p.kind), target).Label(p.kind)

	var key string
	if p.seed != 0 {
		key = s.keyer.DegradeKey(cache.Hash(body), p.keyOpts())
		if data, ok, err := s.cache.Get(ctx, key); err != nil {
			s.logger.Warn("cache read failed", "err", err)
		} else if ok {
			observability.Cache().OnCacheHit(ctx, cacheKeyType)
			s.writeImage(w, p, label, data, "hit")
			return
		}
		observability.Cache().OnCacheMiss(ctx, cacheKeyType)
	}

	clean, err := raster.Decode(bytes.NewReader(body))
	if err != nil {
		respondErr(w, err)
		return
	}

	pipeline, err := degrade.New(p.opts, s.logger)
	if err != nil {
		respondErr(w, err)
		return
	}
	res, err := pipeline.Degrade(ctx, clean, target, degrade.Request{
		Policy: p.policy,
		Kind:   p.kind,
		Params: p.noise.Params(p.kind),
		Rand:   noise.NewRand(p.seed, uint64(target.LongSide())),
	})
	if err != nil {
		respondErr(w, err)
		return
	}

	var buf bytes.Buffer
	if err := raster.EncodePNG(&buf, res.Image); err != nil {
		respondErr(w, errors.Wrap(errors.ErrCodeInternal, err, "encode png"))
		return
	}
	status := "miss"
	if key != "" {
		if err := s.cache.Set(ctx, key, buf.Bytes(), s.cfg.CacheTTL); err != nil {
			s.logger.Warn("cache write failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, cacheKeyType, buf.Len())
		}
	} else {
		status = "bypass"
	}
	s.logger.Info("degraded", "size", target, "kind", p.kind, "strategy", p.policy.Strategy,
		"params", res.Params.Label(p.kind), "duration", res.Duration)
	s.writeImage(w, p, res.Params.Label(p.kind), buf.Bytes(), status)
}

func (s *Server) writeImage(w http.ResponseWriter, p *degradeParams, label string, data []byte, cacheStatus string) {
	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set(HeaderKind, string(p.kind))
	h.Set(HeaderParams, label)
	h.Set(HeaderStrategy, p.policy.String())
	h.Set(HeaderCache, cacheStatus)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (p *degradeParams) keyOpts() cache.DegradeKeyOpts {
	return cache.DegradeKeyOpts{
		Size:          p.size,
		Kind:          string(p.kind),
		Intensity:     p.noise.Intensity,
		Mean:          p.noise.Mean,
		Amount:        p.noise.Amount,
		Strategy:      string(p.policy.Strategy),
		BaseSize:      p.policy.BaseSize,
		Alpha:         p.policy.Alpha,
		MedianKernel:  p.opts.MedianKernel,
		OutputSize:    p.opts.OutputSize,
		Interpolation: string(p.opts.Interpolation),
		Seed:          p.seed,
	}
}

// =============================================================================
// Request parsing
// =============================================================================

// parseDegradeParams validates every parameter before the body is read.
// size and output_size may not exceed maxSize.
func parseDegradeParams(q url.Values, maxSize int) (*degradeParams, error) {
	p := &degradeParams{
		noise:  batch.NoiseConfig{Kind: string(noise.Gaussian), Intensity: batch.DefaultIntensity},
		policy: consistency.DefaultPolicy(),
		opts:   degrade.Options{Interpolation: raster.DefaultInterpolation},
	}

	var err error
	if p.size, err = intParam(q, "size", 0); err != nil {
		return nil, err
	}
	if p.size < 0 {
		return nil, errors.New(errors.ErrCodeInvalidDimension, "size must be positive, got %d", p.size)
	}
	if p.size > maxSize {
		return nil, errors.New(errors.ErrCodeInvalidDimension, "size %d exceeds the limit of %d", p.size, maxSize)
	}

	if v := q.Get("kind"); v != "" {
		p.noise.Kind = v
	}
	if p.noise.Strict, err = boolParam(q, "strict"); err != nil {
		return nil, err
	}
	if p.noise.Intensity, err = floatParam(q, "intensity", p.noise.Intensity); err != nil {
		return nil, err
	}
	if p.noise.Mean, err = floatParam(q, "mean", 0); err != nil {
		return nil, err
	}
	if p.noise.Amount, err = floatParam(q, "amount", 0); err != nil {
		return nil, err
	}
	if p.kind, p.fellBack, err = noise.ResolveKind(p.noise.Kind, p.noise.Strict); err != nil {
		return nil, err
	}
	if err := p.noise.Params(p.kind).Validate(p.kind); err != nil {
		return nil, err
	}

	if q.Has("strategy") {
		st, err := consistency.Select(q["strategy"]...)
		if err != nil {
			return nil, err
		}
		if st != p.policy.Strategy {
			p.policy.Strategy = st
			p.policy.BaseSize = 0
		}
	}
	if p.policy.BaseSize, err = intParam(q, "base_size", p.policy.BaseSize); err != nil {
		return nil, err
	}
	if p.policy.Alpha, err = floatParam(q, "alpha", p.policy.Alpha); err != nil {
		return nil, err
	}
	p.policy.SetDefaults()
	if err := p.policy.Validate(); err != nil {
		return nil, err
	}
	if p.opts.MedianKernel, err = intParam(q, "median", 0); err != nil {
		return nil, err
	}
	if p.opts.OutputSize, err = intParam(q, "output_size", 0); err != nil {
		return nil, err
	}
	if p.opts.OutputSize > maxSize {
		return nil, errors.New(errors.ErrCodeInvalidDimension, "output_size %d exceeds the limit of %d", p.opts.OutputSize, maxSize)
	}
	if v := q.Get("interp"); v != "" {
		p.opts.Interpolation = raster.Interpolation(v)
	}
	if err := p.opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	if v := q.Get("seed"); v != "" {
		if p.seed, err = strconv.ParseUint(v, 10, 64); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "seed %q", v)
		}
	}
	return p, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidInput, err, "%s %q", name, v)
	}
	return n, nil
}

func floatParam(q url.Values, name string, def float64) (float64, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidInput, err, "%s %q", name, v)
	}
	return f, nil
}

func boolParam(q url.Values, name string) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeInvalidInput, err, "%s %q", name, v)
	}
	return b, nil
}

// readImage returns the raw body, or the "file" part of a multipart form.
func readImage(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var src io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(limit); err != nil {
			return nil, bodyError(err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "no file uploaded")
		}
		defer file.Close()
		src = file
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, bodyError(err)
	}
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "empty request body")
	}
	return data, nil
}

// sourceSize reads the upload's dimensions from its header and rejects a
// long side above maxSize before any pixel is decoded.
func sourceSize(body []byte, maxSize int) (raster.Size, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return raster.Size{}, errors.Wrap(errors.ErrCodeImageLoad, err, "decode image")
	}
	size := raster.Size{Width: cfg.Width, Height: cfg.Height}
	if err := size.Validate(); err != nil {
		return raster.Size{}, err
	}
	if size.LongSide() > maxSize {
		return raster.Size{}, errors.New(errors.ErrCodeInvalidDimension,
			"image %s exceeds the limit of %d", size, maxSize)
	}
	return size, nil
}

var errTooLarge = errors.New(errors.ErrCodeInvalidInput, "request body too large")

func bodyError(err error) error {
	var mbe *http.MaxBytesError
	if stderrors.As(err, &mbe) {
		return errTooLarge
	}
	return errors.Wrap(errors.ErrCodeInvalidInput, err, "read body")
}

// =============================================================================
// Responses
// =============================================================================

// errorBody is the JSON shape of every failure.
type errorBody struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code errors.Code, message string) {
	respondJSON(w, status, errorBody{Error: message, Code: code})
}

// respondErr maps an error's code to an HTTP status.
func respondErr(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), errors.GetCode(err), errors.UserMessage(err))
}

func statusFor(err error) int {
	if err == errTooLarge {
		return http.StatusRequestEntityTooLarge
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput,
		errors.ErrCodeInvalidConfig,
		errors.ErrCodeInvalidDimension,
		errors.ErrCodeInvalidNoiseKind,
		errors.ErrCodeConfigurationConflict:
		return http.StatusBadRequest
	case errors.ErrCodeImageLoad:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
