package loader

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texloader/texloader/pkg/logging"
	"github.com/texloader/texloader/pkg/texture"
	"github.com/texloader/texloader/pkg/texture/cache"
	"github.com/texloader/texloader/pkg/texture/decode"
	"github.com/texloader/texloader/pkg/texture/fetch"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 0x40, A: 0xFF})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	lastURL string

	payload []byte
	err     error

	// fractions emitted before the synthesized final 1.0
	fractions []float64

	// optional gate: Fetch signals entered and then blocks until released
	entered  chan struct{}
	released chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, onProgress fetch.ProgressFunc) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.lastURL = url
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
		select {
		case <-f.released:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.err != nil {
		return nil, f.err
	}

	for _, fraction := range f.fractions {
		if onProgress != nil {
			onProgress(fraction)
		}
	}
	if onProgress != nil {
		onProgress(1.0)
	}

	return f.payload, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTranscoder struct {
	mu       sync.Mutex
	urlCalls int
	byteCall int

	image *texture.Image
	raw   []byte
	err   error
}

func (f *fakeTranscoder) DecodeBytes(ctx context.Context, data []byte, opts decode.Options) (*texture.Image, error) {
	f.mu.Lock()
	f.byteCall++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return f.image, nil
}

func (f *fakeTranscoder) DecodeURL(ctx context.Context, url string, opts decode.Options) (*texture.Image, []byte, error) {
	f.mu.Lock()
	f.urlCalls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, nil, f.err
	}
	return f.image, f.raw, nil
}

func newTestStore(t *testing.T, fs afero.Fs) *cache.Store {
	t.Helper()

	config, err := cache.NewConfig(
		cache.WithRoot("/textures"),
		cache.WithFs(fs),
		cache.WithLogger(logging.Discard()),
	)
	require.NoError(t, err)

	store, err := cache.NewStore(config)
	require.NoError(t, err)
	return store
}

func newTestLoader(t *testing.T, store *cache.Store, fetcher Fetcher, extra ...Option) *Loader {
	t.Helper()

	opts := append([]Option{
		WithLogger(logging.Discard()),
		WithStore(store),
		WithFetcher(fetcher),
	}, extra...)

	config, err := NewConfig(opts...)
	require.NoError(t, err)

	l, err := NewLoader(config)
	require.NoError(t, err)
	return l
}

func awaitOutcome(t *testing.T, h *Handle) (Outcome, bool) {
	t.Helper()

	select {
	case outcome, ok := <-h.Outcome():
		return outcome, ok
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for request outcome")
		return Outcome{}, false
	}
}

func TestRequestEmptyIdentifier(t *testing.T) {
	fetcher := &fakeFetcher{}
	l := newTestLoader(t, newTestStore(t, afero.NewMemMapFs()), fetcher)

	var gotErr error
	h := l.Request(context.Background(), "", Callbacks{
		OnError: func(err error) { gotErr = err },
	})

	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.Error(t, outcome.Err)
	assert.Equal(t, "empty url", outcome.Err.Error())
	assert.Equal(t, outcome.Err, gotErr)
	assert.Equal(t, 0, fetcher.callCount())
}

func TestRequestServedFromCache(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newTestStore(t, fs)
	require.NoError(t, store.Write("a.png", encodePNG(t, 4, 4)))

	fetcher := &fakeFetcher{}
	l := newTestLoader(t, store, fetcher)

	h := l.Request(context.Background(), "a.png", Callbacks{})
	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.NoError(t, outcome.Err)

	assert.Equal(t, "a.png", outcome.ResolvedPath)
	assert.Equal(t, 4, outcome.Image.Width)
	assert.Equal(t, 0, fetcher.callCount(), "cache hit must not invoke the fetcher")
}

func TestRequestFetchesAndCachesOnMiss(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newTestStore(t, fs)
	payload := encodePNG(t, 2, 2)

	fetcher := &fakeFetcher{payload: payload}
	l := newTestLoader(t, store, fetcher)

	h := l.Request(context.Background(), "https://example.com/a.png", Callbacks{})
	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.NoError(t, outcome.Err)

	assert.Equal(t, 1, fetcher.callCount())
	assert.Equal(t, "https://example.com/a.png", fetcher.lastURL)
	assert.Equal(t, "https://example.com/a.png", outcome.ResolvedPath)
	assert.False(t, outcome.Image.Orientation.XFlipped)
	assert.False(t, outcome.Image.Orientation.YFlipped)

	// Round-trip: the cached bytes match what the fetcher returned.
	cached, err := store.Read("a.png")
	require.NoError(t, err)
	assert.Equal(t, payload, cached)
}

func TestRequestIdempotence(t *testing.T) {
	store := newTestStore(t, afero.NewMemMapFs())
	fetcher := &fakeFetcher{payload: encodePNG(t, 2, 2)}
	l := newTestLoader(t, store, fetcher)

	for i := 0; i < 2; i++ {
		h := l.Request(context.Background(), "https://example.com/a.png", Callbacks{})
		outcome, ok := awaitOutcome(t, h)
		require.True(t, ok)
		require.NoError(t, outcome.Err)
	}

	assert.Equal(t, 1, fetcher.callCount(), "second request must be served from the cache")
}

func TestRequestProgressOrdering(t *testing.T) {
	store := newTestStore(t, afero.NewMemMapFs())
	fetcher := &fakeFetcher{
		payload:   encodePNG(t, 2, 2),
		fractions: []float64{0.25, 0.5, 0.75},
	}
	l := newTestLoader(t, store, fetcher)

	var mu sync.Mutex
	var fractions []float64
	terminalSeen := false
	progressAfterTerminal := false

	h := l.Request(context.Background(), "https://example.com/a.png", Callbacks{
		OnProgress: func(fraction float64) {
			mu.Lock()
			defer mu.Unlock()
			if terminalSeen {
				progressAfterTerminal = true
			}
			fractions = append(fractions, fraction)
		},
		OnSuccess: func(image *texture.Image, resolvedPath string) {
			mu.Lock()
			defer mu.Unlock()
			terminalSeen = true
		},
	})

	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.NoError(t, outcome.Err)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, terminalSeen)
	assert.False(t, progressAfterTerminal)
	require.NotEmpty(t, fractions)
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
}

func TestRequestTransportError(t *testing.T) {
	store := newTestStore(t, afero.NewMemMapFs())
	fetcher := &fakeFetcher{err: texture.NewTransportError("https://example.com/a.png", "HTTP 503", nil)}
	l := newTestLoader(t, store, fetcher)

	h := l.Request(context.Background(), "https://example.com/a.png", Callbacks{})
	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.Error(t, outcome.Err)

	var transportErr *texture.TransportError
	assert.ErrorAs(t, outcome.Err, &transportErr)
	assert.False(t, store.Exists("a.png"), "failed fetch must not leave a cache entry")
}

func TestRequestUnsupportedExtension(t *testing.T) {
	fetcher := &fakeFetcher{}
	l := newTestLoader(t, newTestStore(t, afero.NewMemMapFs()), fetcher)

	h := l.Request(context.Background(), "anim.gif", Callbacks{})
	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.Error(t, outcome.Err)

	assert.Contains(t, outcome.Err.Error(), "unsupported mime type")
	assert.Equal(t, 0, fetcher.callCount())
}

func TestRequestTranscodingCapabilityAbsent(t *testing.T) {
	fetcher := &fakeFetcher{}
	l := newTestLoader(t, newTestStore(t, afero.NewMemMapFs()), fetcher)

	h := l.Request(context.Background(), "https://example.com/sprite.basis", Callbacks{})
	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.Error(t, outcome.Err)

	assert.Contains(t, outcome.Err.Error(), "transcoding support not enabled")
	assert.Equal(t, 0, fetcher.callCount(), "capability absence must not trigger network I/O")
}

func TestRequestTranscodedFetch(t *testing.T) {
	store := newTestStore(t, afero.NewMemMapFs())
	fetcher := &fakeFetcher{}
	transcoder := &fakeTranscoder{
		image: &texture.Image{
			Pixels:      []byte{1, 2, 3, 4},
			Width:       1,
			Height:      1,
			Orientation: texture.Orientation{YFlipped: true},
		},
		raw: []byte("ktx2 container bytes"),
	}
	l := newTestLoader(t, store, fetcher, WithTranscoder(transcoder))

	h := l.Request(context.Background(), "https://example.com/terrain.ktx2", Callbacks{})
	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.NoError(t, outcome.Err)

	assert.True(t, outcome.Image.Orientation.YFlipped)
	assert.Equal(t, 1, transcoder.urlCalls)
	assert.Equal(t, 0, fetcher.callCount(), "compressed formats use the fused fetch+decode path")

	// Raw container bytes were persisted for future cache hits.
	cached, err := store.Read("terrain.ktx2")
	require.NoError(t, err)
	assert.Equal(t, []byte("ktx2 container bytes"), cached)
}

func TestRequestTranscodedCacheHit(t *testing.T) {
	store := newTestStore(t, afero.NewMemMapFs())
	require.NoError(t, store.Write("terrain.ktx2", []byte("ktx2 container bytes")))

	transcoder := &fakeTranscoder{image: &texture.Image{Width: 2, Height: 2}}
	l := newTestLoader(t, store, &fakeFetcher{}, WithTranscoder(transcoder))

	h := l.Request(context.Background(), "https://example.com/terrain.ktx2", Callbacks{})
	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.NoError(t, outcome.Err)

	assert.Equal(t, 1, transcoder.byteCall)
	assert.Equal(t, 0, transcoder.urlCalls)
}

func TestRequestTranscodeFailure(t *testing.T) {
	store := newTestStore(t, afero.NewMemMapFs())
	transcoder := &fakeTranscoder{err: errors.New("bad container")}
	l := newTestLoader(t, store, &fakeFetcher{}, WithTranscoder(transcoder))

	h := l.Request(context.Background(), "https://example.com/terrain.ktx2", Callbacks{})
	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.Error(t, outcome.Err)

	assert.Contains(t, outcome.Err.Error(), "unable to transcode")
	assert.Contains(t, outcome.Err.Error(), "terrain.ktx2")
}

func TestRequestCorruptCachedPayload(t *testing.T) {
	store := newTestStore(t, afero.NewMemMapFs())
	require.NoError(t, store.Write("a.png", []byte("corrupt bytes")))

	l := newTestLoader(t, store, &fakeFetcher{})

	h := l.Request(context.Background(), "a.png", Callbacks{})
	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.Error(t, outcome.Err)

	var decodeErr *texture.DecodeError
	assert.ErrorAs(t, outcome.Err, &decodeErr)
}

func TestRequestPersistFailureIsNonFatal(t *testing.T) {
	// Read-only fs: cache writes fail, decode still succeeds.
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	store := newTestStore(t, fs)

	fetcher := &fakeFetcher{payload: encodePNG(t, 2, 2)}
	l := newTestLoader(t, store, fetcher)

	h := l.Request(context.Background(), "https://example.com/a.png", Callbacks{})
	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.NoError(t, outcome.Err, "an unpersistable payload still decodes to Success")
}

func TestRequestUseCacheOverride(t *testing.T) {
	store := newTestStore(t, afero.NewMemMapFs())
	require.NoError(t, store.Write("a.png", encodePNG(t, 4, 4)))

	fetcher := &fakeFetcher{payload: encodePNG(t, 2, 2)}
	l := newTestLoader(t, store, fetcher)

	h := l.Request(context.Background(), "https://example.com/a.png", Callbacks{}, WithUseCache(false))
	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.NoError(t, outcome.Err)

	assert.Equal(t, 1, fetcher.callCount(), "cache lookup must be skipped when disabled")
	assert.Equal(t, 2, outcome.Image.Width, "the freshly fetched payload wins")
}

func TestRequestWithoutStore(t *testing.T) {
	fetcher := &fakeFetcher{payload: encodePNG(t, 2, 2)}
	l := newTestLoader(t, nil, fetcher)

	h := l.Request(context.Background(), "https://example.com/a.png", Callbacks{})
	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.NoError(t, outcome.Err)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestRequestCancellationSuppressesNotifications(t *testing.T) {
	store := newTestStore(t, afero.NewMemMapFs())
	fetcher := &fakeFetcher{
		payload:  encodePNG(t, 2, 2),
		entered:  make(chan struct{}, 1),
		released: make(chan struct{}),
	}
	l := newTestLoader(t, store, fetcher)

	var mu sync.Mutex
	notified := false
	mark := func() {
		mu.Lock()
		defer mu.Unlock()
		notified = true
	}

	h := l.Request(context.Background(), "https://example.com/a.png", Callbacks{
		OnSuccess:  func(image *texture.Image, resolvedPath string) { mark() },
		OnError:    func(err error) { mark() },
		OnProgress: func(fraction float64) { mark() },
	})

	<-fetcher.entered
	h.Cancel()

	_, ok := awaitOutcome(t, h)
	assert.False(t, ok, "cancelled request closes the outcome channel without a value")

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, notified, "no notifications may be delivered after cancellation")
}

func TestRequestCoalescing(t *testing.T) {
	store := newTestStore(t, afero.NewMemMapFs())
	fetcher := &fakeFetcher{
		payload:  encodePNG(t, 2, 2),
		entered:  make(chan struct{}, 2),
		released: make(chan struct{}),
	}
	l := newTestLoader(t, store, fetcher, WithCoalescing())

	h1 := l.Request(context.Background(), "https://example.com/a.png", Callbacks{})
	<-fetcher.entered

	h2 := l.Request(context.Background(), "https://example.com/a.png", Callbacks{})
	time.Sleep(50 * time.Millisecond) // let the second request join the in-flight fetch
	close(fetcher.released)

	o1, ok := awaitOutcome(t, h1)
	require.True(t, ok)
	require.NoError(t, o1.Err)

	o2, ok := awaitOutcome(t, h2)
	require.True(t, ok)
	require.NoError(t, o2.Err)

	assert.Equal(t, 1, fetcher.callCount(), "coalescing shares one transfer per cache key")
}
