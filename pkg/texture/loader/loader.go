package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/texloader/texloader/pkg/logging"
	"github.com/texloader/texloader/pkg/texture"
	"github.com/texloader/texloader/pkg/texture/cache"
	"github.com/texloader/texloader/pkg/texture/decode"
)

// Loader is the cache-or-download orchestrator: it resolves a resource
// identifier to a decoded image by trying the cache first and falling back
// to a network fetch plus persist. It is an explicit service object meant to
// be constructed once per process and handed to callers; there is no hidden
// global instance.
type Loader struct {
	logger     logging.Interface
	store      *cache.Store
	fetcher    Fetcher
	transcoder decode.Transcoder
	raster     decode.BytesDecoder
	metrics    *Metrics
	useCache   bool
	group      *singleflight.Group
}

// NewLoader creates a loader from the given configuration.
func NewLoader(config *Config) (*Loader, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid loader config: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	raster := config.Raster
	if raster == nil {
		raster = decode.NewRaster()
	}

	l := &Loader{
		logger:     logger,
		store:      config.Store,
		fetcher:    config.Fetcher,
		transcoder: config.Transcoder,
		raster:     raster,
		metrics:    config.Metrics,
		useCache:   config.UseCache,
	}
	if config.Coalesce {
		l.group = &singleflight.Group{}
	}

	return l, nil
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	useCache    bool
	linearColor bool
}

// WithUseCache overrides the loader-wide cache default for this request.
// It has no effect when the loader has no cache store.
func WithUseCache(use bool) RequestOption {
	return func(o *requestOptions) {
		o.useCache = use
	}
}

// WithLinearColorSpace asks the decoder for linear-color output.
func WithLinearColorSpace(linear bool) RequestOption {
	return func(o *requestOptions) {
		o.linearColor = linear
	}
}

// Request starts an asynchronous load for the identifier and returns
// immediately. Progress, success, and error are delivered through the
// callbacks and mirrored on the returned handle. Cancel the request via the
// handle or the supplied context; once cancelled, no further notifications
// are delivered.
func (l *Loader) Request(ctx context.Context, identifier string, callbacks Callbacks, opts ...RequestOption) *Handle {
	options := &requestOptions{useCache: l.useCache}
	for _, opt := range opts {
		opt(options)
	}

	ctx, cancel := context.WithCancel(ctx)
	handle := &Handle{
		id:      uuid.New(),
		outcome: make(chan Outcome, 1),
		cancel:  cancel,
	}

	n := newNotifier(ctx, callbacks)
	go l.run(ctx, identifier, options, n, handle)

	return handle
}

func (l *Loader) run(ctx context.Context, identifier string, options *requestOptions, n *notifier, handle *Handle) {
	defer handle.cancel()

	image, err := l.load(ctx, identifier, options, n)

	if err != nil {
		if n.fail(err) {
			l.metrics.observeOutcome("failure")
			l.logger.WithField("identifier", identifier).WithError(err).Warn("texture request failed")
			handle.outcome <- Outcome{ResolvedPath: identifier, Err: err}
		}
		close(handle.outcome)
		return
	}

	if n.success(image, identifier) {
		l.metrics.observeOutcome("success")
		handle.outcome <- Outcome{Image: image, ResolvedPath: identifier}
	}
	close(handle.outcome)
}

// load runs the pipeline state machine: validate, classify, try cache,
// fetch, persist, decode.
func (l *Loader) load(ctx context.Context, identifier string, options *requestOptions, n *notifier) (*texture.Image, error) {
	if identifier == "" {
		return nil, texture.NewEmptyIdentifierError()
	}

	tag := texture.Classify(identifier)
	decodeOpts := decode.Options{LinearColorSpace: options.linearColor}

	// Cache is only consulted for formats we could actually decode, and only
	// when a store exists on this platform.
	cacheEligible := l.store != nil && options.useCache &&
		(tag.IsRaster() || (tag.IsCompressed() && l.transcoder != nil))

	if cacheEligible {
		data, err := l.store.Read(identifier)
		if err == nil {
			l.metrics.observeCacheHit()
			l.logger.WithField("identifier", identifier).Debug("texture served from cache")
			return l.decodeBytes(ctx, identifier, tag, data, decodeOpts)
		}

		// A failed cache read is an expected miss, never a reported error.
		if !errors.Is(err, cache.ErrNotFound) {
			l.logger.WithField("identifier", identifier).WithError(err).Warn("cache read failed, falling back to fetch")
		}
		l.metrics.observeCacheMiss()
	}

	switch {
	case tag.IsRaster():
		payload, err := l.fetchAndPersist(ctx, identifier, n)
		if err != nil {
			return nil, err
		}
		return l.decodeBytes(ctx, identifier, tag, payload, decodeOpts)

	case tag.IsCompressed() && l.transcoder != nil:
		// Fused fetch+decode: the transcoding library streams and decodes
		// together, returning the raw container bytes for us to persist.
		image, raw, err := l.transcoder.DecodeURL(ctx, identifier, decodeOpts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, texture.NewTranscodeError(identifier, err)
		}

		l.metrics.observeFetchedBytes(len(raw))
		if len(raw) > 0 {
			l.persist(identifier, raw)
		}
		return image, nil

	case tag.IsCompressed():
		// Capability absent: fail fast, no network I/O.
		return nil, texture.NewTranscodingDisabledError(identifier)

	default:
		return nil, texture.NewUnsupportedMimeError(identifier)
	}
}

// fetchAndPersist downloads the payload and writes it to the cache before
// returning. With coalescing enabled, concurrent requests for the same cache
// key share one transfer; only the leading request relays progress.
func (l *Loader) fetchAndPersist(ctx context.Context, identifier string, n *notifier) ([]byte, error) {
	do := func() ([]byte, error) {
		payload, err := l.fetcher.Fetch(ctx, identifier, n.progress)
		if err != nil {
			return nil, err
		}

		l.metrics.observeFetchedBytes(len(payload))
		l.persist(identifier, payload)
		return payload, nil
	}

	if l.group == nil {
		return do()
	}

	v, err, _ := l.group.Do(cache.Key(identifier), func() (interface{}, error) {
		return do()
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// persist writes the payload to the cache store. Failures are logged and
// ignored: a decodable in-memory payload still yields Success even when the
// bytes could not be cached.
func (l *Loader) persist(identifier string, payload []byte) {
	if l.store == nil {
		return
	}

	if err := l.store.Write(identifier, payload); err != nil {
		l.logger.WithField("identifier", identifier).WithError(err).Warn("failed to persist texture to cache")
	}
}

func (l *Loader) decodeBytes(ctx context.Context, identifier string, tag texture.MimeTag, data []byte, opts decode.Options) (*texture.Image, error) {
	if tag.IsCompressed() {
		image, err := l.transcoder.DecodeBytes(ctx, data, opts)
		if err != nil {
			return nil, texture.NewTranscodeError(identifier, err)
		}
		return image, nil
	}

	image, err := l.raster.DecodeBytes(ctx, data, opts)
	if err != nil {
		return nil, texture.NewDecodeError(identifier, tag, err)
	}
	return image, nil
}
