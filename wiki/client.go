package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olgasafonova/wiki-templates-uploader/internal/breaker"
	"github.com/olgasafonova/wiki-templates-uploader/internal/ipaddr"
	"github.com/olgasafonova/wiki-templates-uploader/metrics"
	"github.com/olgasafonova/wiki-templates-uploader/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Client handles communication with the MediaWiki API
type Client struct {
	config     *Config
	apiURL     string
	httpClient *http.Client
	logger     *slog.Logger

	// Authentication state
	mu       sync.RWMutex
	username string
	userID   int

	tokens *TokenWallet

	// Rate limiting - semaphore to control concurrent requests
	semaphore chan struct{}

	breaker *breaker.Breaker
}

// MaxConcurrentRequests limits parallel API calls to prevent overwhelming the server
const MaxConcurrentRequests = 3

// NewClient creates a new MediaWiki API client
func NewClient(config *Config, logger *slog.Logger) *Client {
	jar, _ := cookiejar.New(nil)

	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		config: config,
		apiURL: config.APIURL(),
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Jar:       jar,
			Transport: transport,
		},
		logger:    logger,
		semaphore: make(chan struct{}, MaxConcurrentRequests),
		breaker:   breaker.New(config.BreakerThreshold, config.BreakerCooldown),
	}
	c.breaker.OnChange = func(s breaker.State) {
		if s == breaker.Open {
			metrics.CircuitOpen.Set(1)
			logger.Warn("Wiki keeps failing, pausing requests", "site", config.Host)
			return
		}
		metrics.CircuitOpen.Set(0)
	}
	c.tokens = newTokenWallet(c)
	return c
}

// Close releases idle connections. The client stays usable.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Site returns the host the client talks to.
func (c *Client) Site() string {
	return c.config.Host
}

// Username returns the authenticated user name, or "" when the session is
// anonymous.
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// LoggedIn reports whether the client holds an authenticated session.
func (c *Client) LoggedIn() bool {
	return c.Username() != ""
}

// Tokens returns the client's token wallet.
func (c *Client) Tokens() *TokenWallet {
	return c.tokens
}

// apiRequest form-POSTs params to api.php and returns the decoded response
func (c *Client) apiRequest(ctx context.Context, params url.Values) (map[string]interface{}, error) {
	params.Set("format", "json")
	body := params.Encode()
	return c.do(ctx, params.Get("action"), func() (io.Reader, string, error) {
		return strings.NewReader(body), "application/x-www-form-urlencoded", nil
	})
}

// do sends a request built by newBody with rate limiting and retries. newBody
// is called once per attempt because a request body is consumed on send.
func (c *Client) do(ctx context.Context, action string, newBody func() (io.Reader, string, error)) (map[string]interface{}, error) {
	ctx, span := tracing.StartSpan(ctx, "wiki.api."+action)
	defer span.End()
	tracing.AddWikiAttributes(span, action, "")

	// Acquire semaphore slot (rate limiting)
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	default:
		metrics.RateLimitWaits.Inc()
		select {
		case c.semaphore <- struct{}{}:
			defer func() { <-c.semaphore }()
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled while waiting for rate limiter: %w", ctx.Err())
		}
	}

	// Checked only once a slot is held, so an admitted trial call always
	// reaches send and gets a verdict.
	if err := c.breaker.Allow(); err != nil {
		tracing.RecordError(span, err)
		metrics.RecordAPICall(action, 0, false, "circuit_open")
		return nil, err
	}

	start := time.Now()
	result, err := c.send(ctx, action, newBody)
	duration := time.Since(start).Seconds()

	var unavailable *unavailableError
	switch {
	case errors.As(err, &unavailable):
		c.breaker.Failure()
	case err == nil || ctx.Err() == nil:
		c.breaker.Success()
	default:
		c.breaker.Release()
	}

	errorCode := ""
	if err != nil {
		errorCode = "transport"
		if apiErr, ok := err.(*APIError); ok {
			errorCode = apiErr.Code
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.Float64("wiki.api.duration_seconds", duration))
	metrics.RecordAPICall(action, duration, err == nil, errorCode)

	return result, err
}

func (c *Client) send(ctx context.Context, action string, newBody func() (io.Reader, string, error)) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.APIRetries.WithLabelValues(action).Inc()
			// Exponential backoff with context awareness
			backoff := time.Duration(attempt*attempt) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
			}
		}

		body, contentType, err := newBody()
		if err != nil {
			return nil, fmt.Errorf("failed to build request body: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, body)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("User-Agent", c.config.UserAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.logger.Warn("API request failed, retrying",
				"action", action,
				"attempt", attempt+1,
				"max_retries", c.config.MaxRetries,
				"error", err)
			continue
		}

		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			// Don't retry client errors (4xx) except rate limiting (429)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, fmt.Errorf("client error %d: %s", resp.StatusCode, truncate(string(data), 200))
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
					if seconds, parseErr := strconv.Atoi(retryAfter); parseErr == nil {
						c.logger.Warn("Rate limited, waiting",
							"retry_after", seconds,
							"attempt", attempt+1)
						select {
						case <-time.After(time.Duration(seconds) * time.Second):
						case <-ctx.Done():
							return nil, fmt.Errorf("context cancelled during rate limit wait: %w", ctx.Err())
						}
						continue
					}
				}
			}

			lastErr = fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
			c.logger.Warn("API returned non-OK status",
				"action", action,
				"status", resp.StatusCode,
				"attempt", attempt+1)
			continue
		}

		var result map[string]interface{}
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}

		if errObj, ok := result["error"].(map[string]interface{}); ok {
			return nil, &APIError{
				Code: getString(errObj, "code"),
				Info: getString(errObj, "info"),
			}
		}

		return result, nil
	}

	return nil, &unavailableError{err: lastErr}
}

// unavailableError marks a request that failed on every attempt without an
// answer from the wiki.
type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string { return e.err.Error() }
func (e *unavailableError) Unwrap() error { return e.err }

// Login authenticates with the wiki using the configured bot password.
func (c *Client) Login(ctx context.Context) error {
	if !c.config.HasCredentials() {
		metrics.AuthFailures.WithLabelValues("no_credentials").Inc()
		return &AuthenticationError{
			Code:      AuthCodeNoCredentials,
			Operation: "login",
			Reason:    "no credentials configured",
		}
	}

	err := c.loginOnce(ctx)
	if err != nil && strings.Contains(err.Error(), "BotPasswordSessionProvider") {
		c.logger.Warn("BotPasswordSessionProvider conflict detected, resetting cookies")
		c.resetCookies()
		err = c.loginOnce(ctx)
	}
	if err != nil {
		return err
	}

	c.tokens.Clear()
	if err := c.refreshUserInfo(ctx); err != nil {
		return fmt.Errorf("failed to confirm login: %w", err)
	}
	if !c.LoggedIn() {
		metrics.AuthFailures.WithLabelValues("anonymous_session").Inc()
		return &AuthenticationError{
			Code:      AuthCodeNotLoggedIn,
			Operation: "login",
			Reason:    "wiki reports an anonymous session after login",
		}
	}

	c.logger.Debug("Session confirmed", "username", c.Username())
	return nil
}

func (c *Client) loginOnce(ctx context.Context) error {
	loginToken, err := c.fetchToken(ctx, "login")
	if err != nil {
		return fmt.Errorf("failed to get login token: %w", err)
	}

	params := url.Values{}
	params.Set("action", "login")
	params.Set("lgname", c.config.Username)
	params.Set("lgpassword", c.config.Password)
	params.Set("lgtoken", loginToken)

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	login, ok := resp["login"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("unexpected login response")
	}

	result := getString(login, "result")
	if result != "Success" {
		reason := getString(login, "reason")
		metrics.AuthFailures.WithLabelValues("invalid_credentials").Inc()
		return &AuthenticationError{
			Code:      AuthCodeInvalidCredentials,
			Operation: "login",
			Reason:    strings.TrimSpace(result + " " + reason),
		}
	}
	return nil
}

// refreshUserInfo asks the wiki who we are. MediaWiki reports anonymous
// users with id 0 and their IP address as the name.
func (c *Client) refreshUserInfo(ctx context.Context) error {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "userinfo")

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return err
	}

	userinfo := getNestedMap(resp, "query", "userinfo")
	if userinfo == nil {
		return fmt.Errorf("no userinfo in response")
	}

	id := getInt(userinfo, "id")
	name := getString(userinfo, "name")

	c.mu.Lock()
	defer c.mu.Unlock()
	if id == 0 || name == "" || ipaddr.IsIP(name) {
		c.username = ""
		c.userID = 0
		return nil
	}
	c.username = name
	c.userID = id
	return nil
}

// resetCookies clears all cookies to allow fresh login
func (c *Client) resetCookies() {
	jar, _ := cookiejar.New(nil)
	c.httpClient.Jar = jar
	c.mu.Lock()
	c.username = ""
	c.userID = 0
	c.mu.Unlock()
	c.tokens.Clear()
	c.logger.Debug("Cookies reset for fresh login")
}

// getString safely extracts a string value from a map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// getInt safely extracts an integer from a JSON number
func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}

// getNestedMap walks a chain of object keys
func getNestedMap(m map[string]interface{}, keys ...string) map[string]interface{} {
	current := m
	for _, key := range keys {
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return nil
		}
		current = next
	}
	return current
}

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
