package modal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/mns/internal/connector"
	mnserr "github.com/mrz1836/mns/pkg/errors"
)

var errClosed = errors.New("modal closed by user")

type fakeProvider struct{ closed bool }

func (p *fakeProvider) Request(context.Context, string, ...any) (json.RawMessage, error) {
	return json.RawMessage(`"0x5"`), nil
}

func (p *fakeProvider) Close() { p.closed = true }

type fakeConnector struct {
	name  string
	typ   connector.Type
	err   error
	calls int
}

func (c *fakeConnector) Name() string { return c.name }
func (c *fakeConnector) Type() connector.Type { return c.typ }
func (c *fakeConnector) Display() string { return "Display " + c.name }
func (c *fakeConnector) Connect(context.Context) (connector.Provider, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &fakeProvider{}, nil
}

func newModal(t *testing.T, cfg Config, opts ...Option) *Modal {
	t.Helper()
	m, err := New(cfg, connector.Env{}, opts...)
	require.NoError(t, err)
	return m
}

func TestNew_InjectedFirst(t *testing.T) {
	t.Parallel()
	m := newModal(t, Config{
		InjectedURL: "http://127.0.0.1:1248",
		ProviderOptions: map[string]connector.Options{
			"dev": {Type: connector.TypeMnemonic, MnemonicEnv: "M"},
		},
	})

	choices := m.Choices()
	require.Len(t, choices, 2)
	assert.Equal(t, connector.InjectedName, choices[0].Name)
	assert.Equal(t, "injected", choices[0].Type)
	assert.Equal(t, "dev", choices[1].Name)
}

func TestNew_DisableInjected(t *testing.T) {
	t.Parallel()
	m := newModal(t, Config{
		DisableInjectedProvider: true,
		ProviderOptions: map[string]connector.Options{
			"frame": {Type: connector.TypeInjected, URL: "http://127.0.0.1:1248"},
			"dev":   {Type: connector.TypeMnemonic, MnemonicEnv: "M"},
		},
	})
	require.Len(t, m.Connectors(), 1)
	assert.Equal(t, "dev", m.Connectors()[0].Name())
}

func TestNew_UnknownConnectorType(t *testing.T) {
	t.Parallel()
	_, err := New(Config{ProviderOptions: map[string]connector.Options{"x": {Type: "walletconect"}}}, connector.Env{})
	require.ErrorIs(t, err, mnserr.ErrUnknownConnector)
}

func TestConnect_NoConnectors(t *testing.T) {
	t.Parallel()
	m := newModal(t, Config{DisableInjectedProvider: true})

	_, _, err := m.Connect(context.Background())
	require.ErrorIs(t, err, mnserr.ErrExtensionUnavailable)
}

func TestConnect_FallsThroughUnavailable(t *testing.T) {
	t.Parallel()
	injected := &fakeConnector{name: "injected", typ: connector.TypeInjected, err: mnserr.ErrExtensionUnavailable}
	dev := &fakeConnector{name: "dev", typ: connector.TypeMnemonic}
	m := newModal(t, Config{}, WithConnectors(injected, dev))

	p, c, err := m.Connect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "dev", c.Name())
	assert.Equal(t, 1, injected.calls)
}

func TestConnect_RejectionStops(t *testing.T) {
	t.Parallel()
	injected := &fakeConnector{name: "injected", typ: connector.TypeInjected, err: mnserr.ErrUserRejected}
	dev := &fakeConnector{name: "dev", typ: connector.TypeMnemonic}
	m := newModal(t, Config{}, WithConnectors(injected, dev))

	_, _, err := m.Connect(context.Background())
	require.ErrorIs(t, err, mnserr.ErrUserRejected)
	assert.Equal(t, 0, dev.calls)
}

func TestConnect_AllUnavailable(t *testing.T) {
	t.Parallel()
	a := &fakeConnector{name: "a", err: mnserr.ErrExtensionUnavailable}
	b := &fakeConnector{name: "b", err: mnserr.ErrExtensionUnavailable}
	m := newModal(t, Config{}, WithConnectors(a, b))

	_, _, err := m.Connect(context.Background())
	require.ErrorIs(t, err, mnserr.ErrExtensionUnavailable)
}

func TestConnect_Chooser(t *testing.T) {
	t.Parallel()
	a := &fakeConnector{name: "a"}
	b := &fakeConnector{name: "b"}
	var offered []Choice
	chooser := ChooserFunc(func(_ context.Context, choices []Choice) (string, error) {
		offered = choices
		return "b", nil
	})
	m := newModal(t, Config{}, WithConnectors(a, b), WithChooser(chooser))

	_, c, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", c.Name())
	assert.Len(t, offered, 2)
	assert.Equal(t, 0, a.calls)
}

func TestConnect_ChooserClosed(t *testing.T) {
	t.Parallel()
	chooser := ChooserFunc(func(context.Context, []Choice) (string, error) { return "", errClosed })
	m := newModal(t, Config{}, WithConnectors(&fakeConnector{name: "a"}, &fakeConnector{name: "b"}), WithChooser(chooser))

	_, _, err := m.Connect(context.Background())
	require.ErrorIs(t, err, mnserr.ErrUserRejected)
	require.ErrorIs(t, err, errClosed)
}

func TestConnect_ChooserUnknownName(t *testing.T) {
	t.Parallel()
	chooser := ChooserFunc(func(context.Context, []Choice) (string, error) { return "zzz", nil })
	m := newModal(t, Config{}, WithConnectors(&fakeConnector{name: "a"}, &fakeConnector{name: "b"}), WithChooser(chooser))

	_, _, err := m.Connect(context.Background())
	require.ErrorIs(t, err, mnserr.ErrUnknownConnector)
}

func TestConnect_CachedProvider(t *testing.T) {
	t.Parallel()
	a := &fakeConnector{name: "a"}
	b := &fakeConnector{name: "b"}
	cache := &MemoryCache{}
	m := newModal(t, Config{CacheProvider: true}, WithConnectors(a, b), WithCache(cache))

	_, c, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", c.Name())
	assert.Equal(t, "a", m.CachedProvider())

	require.NoError(t, cache.Store("b"))
	_, c, err = m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", c.Name())
	assert.Equal(t, 1, a.calls)

	require.NoError(t, m.ClearCachedProvider())
	assert.Empty(t, m.CachedProvider())
}

func TestConnect_StaleCacheCleared(t *testing.T) {
	t.Parallel()
	a := &fakeConnector{name: "a"}
	gone := &fakeConnector{name: "gone", err: mnserr.ErrExtensionUnavailable}
	cache := &MemoryCache{}
	require.NoError(t, cache.Store("gone"))
	m := newModal(t, Config{CacheProvider: true}, WithConnectors(a, gone), WithCache(cache))

	_, c, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", c.Name())
	assert.Equal(t, "a", m.CachedProvider())
}

func TestConnect_NoCachingWhenDisabled(t *testing.T) {
	t.Parallel()
	cache := &MemoryCache{}
	m := newModal(t, Config{}, WithConnectors(&fakeConnector{name: "a"}), WithCache(cache))

	_, _, err := m.Connect(context.Background())
	require.NoError(t, err)
	name, err := cache.Load()
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestFileCache(t *testing.T) {
	t.Parallel()
	cache := NewFileCache(filepath.Join(t.TempDir(), "home", "modal.yaml"))

	name, err := cache.Load()
	require.NoError(t, err)
	assert.Empty(t, name)

	require.NoError(t, cache.Store("dev"))
	name, err = cache.Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", name)

	require.NoError(t, cache.Clear())
	require.NoError(t, cache.Clear())
	name, err = cache.Load()
	require.NoError(t, err)
	assert.Empty(t, name)
}

var errDiskFull = errors.New("no space left on device")

type brokenCache struct{}

func (brokenCache) Load() (string, error) { return "", errDiskFull }
func (brokenCache) Store(string) error { return errDiskFull }
func (brokenCache) Clear() error { return errDiskFull }

type recordingLogger struct{ lines []string }

func (l *recordingLogger) Error(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestConnect_CacheFailuresAreLogged(t *testing.T) {
	t.Parallel()
	logger := &recordingLogger{}
	m := newModal(t, Config{CacheProvider: true},
		WithConnectors(&fakeConnector{name: "a"}), WithCache(brokenCache{}), WithLogger(logger))

	_, c, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", c.Name())

	require.Len(t, logger.lines, 2)
	assert.Contains(t, logger.lines[0], "reading cached connector")
	assert.Contains(t, logger.lines[1], "caching connector a")
	assert.Contains(t, logger.lines[1], errDiskFull.Error())
}

func TestConnect_StaleCacheClearFailureLogged(t *testing.T) {
	t.Parallel()
	logger := &recordingLogger{}
	cache := &clearFailsCache{name: "gone"}
	m := newModal(t, Config{CacheProvider: true},
		WithConnectors(&fakeConnector{name: "gone", err: mnserr.ErrExtensionUnavailable}, &fakeConnector{name: "a"}),
		WithCache(cache), WithLogger(logger))

	_, c, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", c.Name())
	require.NotEmpty(t, logger.lines)
	assert.Contains(t, logger.lines[0], "clearing stale connector gone")
}

// clearFailsCache serves a cached name but cannot forget it.
type clearFailsCache struct{ name string }

func (c *clearFailsCache) Load() (string, error) { return c.name, nil }
func (c *clearFailsCache) Store(name string) error {
	c.name = name
	return nil
}
func (c *clearFailsCache) Clear() error { return errDiskFull }
