package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/muesli/termenv"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/catalog"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/prefetch"
	"github.com/dgnsrekt/readaloud/internal/prefs"
	"github.com/dgnsrekt/readaloud/internal/reader"
	"github.com/dgnsrekt/readaloud/internal/synth"
	"github.com/dgnsrekt/readaloud/internal/title"
)

const (
	engineHTTP = "http"
	engineMock = "mock"

	titleHTTP   = "http"
	titleOpenAI = "openai"
	titleNone   = "none"
)

// engine is every long-lived component of a reading session.
type engine struct {
	catalog *catalog.Catalog
	cache   *cache.Manager
	prefs   *prefs.Store
	output  audio.Output
	reader  *reader.Reader
}

// Close releases the session and everything it holds.
func (e *engine) Close() error {
	var errs []error
	switch {
	case e.reader != nil:
		// The driver owns the output.
		errs = append(errs, e.reader.Close())
	case e.output != nil:
		errs = append(errs, e.output.Close())
	}
	if e.cache != nil {
		errs = append(errs, e.cache.Close())
	}
	return errors.Join(errs...)
}

type engineOptions struct {
	// Output replaces the audio device, mainly for headless runs without
	// sound.
	Output audio.Output
	// Quiet forces a silent mock output.
	Quiet bool
}

func newEngine(opts engineOptions) (*engine, error) {
	logger := log.Default()
	e := &engine{}

	cat, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	e.catalog = cat

	if e.cache, err = newCache(logger); err != nil {
		return nil, err
	}

	if e.prefs, err = openPrefs(cat, logger); err != nil {
		_ = e.Close()
		return nil, err
	}

	synthesizer, err := newSynthesizer(e.cache, logger)
	if err != nil {
		_ = e.Close()
		return nil, err
	}

	switch {
	case opts.Output != nil:
		e.output = opts.Output
	case opts.Quiet:
		e.output = audio.NewRealtimeMockOutput()
	default:
		out, err := audio.NewOtoOutput(playerConfig())
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("unable to open audio device: %w", err)
		}
		if err := out.SetVolume(viper.GetFloat64("audio.volume")); err != nil {
			log.Warn("ignoring volume", "error", err)
		}
		e.output = out
	}

	driver := playback.NewDriver(e.output, prefetch.New(synthesizer, logger), playback.Options{
		InterTakeDelay: viper.GetDuration("playback.delay"),
		TickInterval:   viper.GetDuration("playback.tick"),
		HighlightPad:   viper.GetDuration("highlight.pad"),
		Logger:         logger,
	})

	e.reader = reader.New(driver, reader.Config{
		Catalog:       cat,
		Prefs:         e.prefs,
		Titles:        newTitleGenerator(),
		MaxTakeLength: viper.GetInt("take.max_length"),
		Logger:        logger,
	})
	return e, nil
}

func playerConfig() audio.PlayerConfig {
	c := audio.DefaultPlayerConfig()
	if r := viper.GetInt("audio.sample_rate"); r != 0 {
		c.SampleRate = r
	}
	return c
}

func newSynthesizer(c *cache.Manager, logger *log.Logger) (synth.Synthesizer, error) {
	switch name := viper.GetString("engine"); name {
	case engineMock:
		m := synth.NewMock()
		m.SetDelay(viper.GetDuration("mock.delay"))
		m.SetPerRune(viper.GetDuration("mock.per_rune"))
		m.SetTone(viper.GetBool("mock.tone"))
		return m, nil
	case engineHTTP, "":
		return synth.NewClient(synth.ClientConfig{
			BaseURL:           viper.GetString("api.url"),
			HTTPClient:        &http.Client{Timeout: viper.GetDuration("api.timeout")},
			RequestsPerSecond: viper.GetFloat64("api.rate"),
			Cache:             c,
			Logger:            logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown engine %q: use %q or %q", name, engineHTTP, engineMock)
	}
}

func newTitleGenerator() title.Generator {
	backend := viper.GetString("title.backend")
	switch backend {
	case titleNone:
		return nil
	case titleOpenAI:
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return title.NewOpenAI(key, viper.GetString("title.openai_model"))
		}
		log.Warn("OPENAI_API_KEY is not set, using the speech service for titles")
	}
	return title.NewHTTP(viper.GetString("api.url"), &http.Client{Timeout: viper.GetDuration("api.timeout")})
}

func newCache(logger *log.Logger) (*cache.Manager, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}

	c := cache.DefaultConfig()
	c.Dir = dir
	c.MemoryCapacity = viper.GetInt64("cache.memory_mb") << 20
	c.DiskCapacity = viper.GetInt64("cache.disk_mb") << 20
	c.CompressionLevel = viper.GetInt("cache.compression")
	if ttl := viper.GetDuration("cache.ttl"); ttl > 0 {
		c.TTL = ttl
	}

	m, err := cache.NewManager(c, logger)
	if err != nil {
		return nil, fmt.Errorf("unable to open audio cache: %w", err)
	}
	return m, nil
}

func cacheDir() (string, error) {
	if dir := viper.GetString("cache.dir"); dir != "" {
		return homedir.Expand(dir)
	}
	dir, err := gap.NewScope(gap.User, appName).CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return filepath.Join(dir, "audio"), nil
}

func prefsPath() (string, error) {
	if p := viper.GetString("prefs.path"); p != "" {
		return homedir.Expand(p)
	}
	dirs, err := gap.NewScope(gap.User, appName).DataDirs()
	if err != nil || len(dirs) == 0 {
		return "", fmt.Errorf("unable to find data directory: %w", err)
	}
	return filepath.Join(dirs[0], "prefs.yml"), nil
}

func openPrefs(cat *catalog.Catalog, logger *log.Logger) (*prefs.Store, error) {
	path, err := prefsPath()
	if err != nil {
		return nil, err
	}

	fallback := prefs.Defaults()
	fallback.Voice = cat.DefaultVoice().Name
	fallback.Dark = termenv.HasDarkBackground()
	return prefs.Open(path, fallback, logger)
}

// loadCatalog reads catalog.yml from the config directory when there is
// one, and the built-in catalog otherwise.
func loadCatalog() (*catalog.Catalog, error) {
	path := viper.GetString("catalog")
	if path == "" {
		if used := viper.ConfigFileUsed(); used != "" {
			path = filepath.Join(filepath.Dir(used), "catalog.yml")
		}
	}
	if path == "" {
		return catalog.Default(), nil
	}

	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("unable to expand catalog path: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !viper.IsSet("catalog") {
		return catalog.Default(), nil
	}

	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load catalog: %w", err)
	}
	log.Debug("using catalog", "path", path)
	return cat, nil
}
