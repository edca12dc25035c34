package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/take"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

const (
	// DefaultBaseURL is where the speech service listens by default.
	DefaultBaseURL = "http://localhost:4000"

	ttsPath = "/api/tts"

	// Upper bound on a response body; a 200 character take is far smaller.
	maxResponseSize = 32 << 20
)

// ClientConfig holds configuration for the HTTP client.
type ClientConfig struct {
	// BaseURL of the speech service (defaults to DefaultBaseURL)
	BaseURL string

	// HTTPClient used for requests (defaults to one with a 60s timeout)
	HTTPClient *http.Client

	// RequestsPerSecond caps request rate; 0 disables limiting
	RequestsPerSecond float64

	// Cache stores synthesized audio by voice and text (optional)
	Cache *cache.Manager

	// Logger for request tracing (optional)
	Logger *log.Logger
}

// Client synthesizes takes with the remote speech service.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	cache   *cache.Manager
	logger  *log.Logger
}

type ttsRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

// NewClient creates a speech service client.
func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		http:    config.HTTPClient,
		limiter: limiter,
		cache:   config.Cache,
		logger:  config.Logger.WithPrefix("synth"),
	}
}

// Synthesize requests audio for t.Synthesis in the given voice.
func (c *Client) Synthesize(ctx context.Context, t take.Take, voiceID string) (*Handle, error) {
	const op = "synthesize"

	if t.Empty() {
		return SilentHandle(), nil
	}

	key := cache.Key(voiceID, t.Synthesis)
	if c.cache != nil {
		if data, ok := c.cache.Get(key); ok {
			if clip, err := audio.DecodeWAV(data); err == nil {
				c.logger.Debug("cache hit", "take", t.Name())
				return NewHandle(data, clip), nil
			}
			_ = c.cache.Delete(key)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.classify(ctx, op, err)
	}

	data, err := c.post(ctx, t.Synthesis, voiceID)
	if err != nil {
		return nil, c.classify(ctx, op, err)
	}

	clip, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, ttypes.NewError(ttypes.KindSynthesisFailed, op, err)
	}

	if c.cache != nil {
		if err := c.cache.Put(key, data); err != nil {
			c.logger.Warn("cache put failed", "take", t.Name(), "err", err)
		}
	}

	c.logger.Debug("synthesized", "take", t.Name(), "bytes", len(data), "duration", clip.Duration())
	return NewHandle(data, clip), nil
}

func (c *Client) post(ctx context.Context, text, voiceID string) ([]byte, error) {
	body, err := json.Marshal(ttsRequest{Text: text, VoiceID: voiceID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ttsPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("speech service returned %s", resp.Status)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}

// classify maps a request error onto the engine's error kinds. A done
// context wins over whatever the transport reported.
func (c *Client) classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return ttypes.Cancelled(op, err)
	}
	c.logger.Warn("request failed", "err", err)
	return ttypes.NewError(ttypes.KindSynthesisFailed, op, err)
}

var _ Synthesizer = (*Client)(nil)
