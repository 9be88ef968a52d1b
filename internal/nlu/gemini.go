// Package nlu calls the Gemini API as a last-resort responder for free text
// the dialog rules do not recognise. One attempt, bounded timeout, fixed
// local reply on any failure.
package nlu

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Vtrbr2/message-ia-bot/internal/cache"
	"github.com/Vtrbr2/message-ia-bot/internal/metrics"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	replyCacheTTL  = 30 * time.Minute
)

// Config holds responder configuration.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	BaseURL string
}

// Client is the fallback responder.
type Client struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	cache   *cache.Redis
	http    *http.Client
}

// New builds a responder client. cache may be nil.
func New(cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics, redisCache *cache.Redis) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &Client{
		cfg:     cfg,
		logger:  logger.With("component", "nlu"),
		metrics: metricRegistry,
		cache:   redisCache,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Fallback is the fixed reply used when the responder is unavailable.
func Fallback(displayName string) string {
	return fmt.Sprintf("Olá %s! No momento estou com limitações técnicas. Por favor, use os comandos:\n\n"+
		"\"orçamento\" - Para solicitar orçamento\n"+
		"\"atendimento\" - Para agendar horário", displayName)
}

// Reply generates a reply for free text. It never returns an empty string:
// on timeout or error the fixed fallback is substituted, with no retry.
func (c *Client) Reply(ctx context.Context, text, displayName string) string {
	if c.cfg.APIKey == "" {
		return Fallback(displayName)
	}

	key := replyCacheKey(text)
	if c.cache != nil {
		if cached, ok, err := c.cache.GetString(ctx, key); err == nil && ok {
			c.metrics.GeminiRequests.WithLabelValues("cache_hit").Inc()
			return cached
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	reply, err := c.generate(ctx, text, displayName)
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.GeminiRequests.WithLabelValues(status).Inc()
	c.metrics.GeminiLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Warn("fallback responder failed", "error", err)
		c.metrics.Errors.WithLabelValues("nlu").Inc()
		return Fallback(displayName)
	}

	if c.cache != nil {
		if err := c.cache.SetString(ctx, key, reply, replyCacheTTL); err != nil {
			c.logger.Debug("failed caching reply", "error", err)
		}
	}
	return reply
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, text, displayName string) (string, error) {
	prompt := fmt.Sprintf(
		"Você é o assistente virtual de uma agência que vende templates de sites e agenda atendimentos. "+
			"O cliente se chama %s e escreveu: %q. "+
			"Responda em português, de forma curta e cordial, e lembre o cliente de que pode digitar "+
			"\"orçamento\" para um orçamento ou \"atendimento\" para agendar um horário.",
		displayName, text,
	)

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed generateResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty candidate list")
	}

	reply := strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text)
	if reply == "" {
		return "", fmt.Errorf("blank reply")
	}
	return reply, nil
}

func replyCacheKey(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(normalized))
	return "nlu:reply:" + hex.EncodeToString(sum[:8])
}
