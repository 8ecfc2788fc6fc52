package wiki

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/olgasafonova/wiki-templates-uploader/metrics"
)

// Token types understood by action=query&meta=tokens.
var knownTokenTypes = map[string]bool{
	"createaccount":          true,
	"csrf":                   true,
	"deleteglobalaccount":    true,
	"login":                  true,
	"patrol":                 true,
	"rollback":               true,
	"setglobalaccountstatus": true,
	"userrights":             true,
	"watch":                  true,
}

// Pre-1.24 per-action token names that MediaWiki now serves as csrf.
var legacyTokenTypes = map[string]string{
	"edit":    "csrf",
	"move":    "csrf",
	"delete":  "csrf",
	"protect": "csrf",
	"block":   "csrf",
	"unblock": "csrf",
	"email":   "csrf",
	"import":  "csrf",
	"options": "csrf",
}

// ValidateTokenTypes maps requested token names to the types the wiki
// serves. Unknown names are dropped; the result is sorted and deduplicated.
func ValidateTokenTypes(types []string) []string {
	seen := make(map[string]bool, len(types))
	var valid []string
	for _, t := range types {
		name, ok := canonicalTokenType(t)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		valid = append(valid, name)
	}
	sort.Strings(valid)
	return valid
}

func canonicalTokenType(t string) (string, bool) {
	if mapped, ok := legacyTokenTypes[t]; ok {
		return mapped, true
	}
	return t, knownTokenTypes[t]
}

// TokenWallet caches API tokens per type for one client session.
// Login tokens are single use and never cached.
type TokenWallet struct {
	client *Client

	mu     sync.Mutex
	tokens map[string]string
}

func newTokenWallet(c *Client) *TokenWallet {
	return &TokenWallet{
		client: c,
		tokens: make(map[string]string),
	}
}

// Get returns a token of the requested type, fetching it on first use.
// Legacy action names such as "edit" resolve to the csrf token.
func (w *TokenWallet) Get(ctx context.Context, tokenType string) (string, error) {
	name, ok := canonicalTokenType(tokenType)
	if !ok {
		metrics.TokenFetches.WithLabelValues(tokenType, "invalid").Inc()
		return "", &TokenError{
			Kind: TokenInvalid,
			Type: tokenType,
			User: w.client.Username(),
			Site: w.client.Site(),
		}
	}

	if name != "login" {
		w.mu.Lock()
		token, cached := w.tokens[name]
		w.mu.Unlock()
		if cached {
			return token, nil
		}
	}

	token, err := w.client.fetchToken(ctx, name)
	if err != nil {
		return "", err
	}

	if name != "login" {
		w.mu.Lock()
		w.tokens[name] = token
		w.mu.Unlock()
	}
	return token, nil
}

// Has reports whether a token of the given type is already cached.
func (w *TokenWallet) Has(tokenType string) bool {
	name, ok := canonicalTokenType(tokenType)
	if !ok {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, cached := w.tokens[name]
	return cached
}

// Clear drops every cached token, e.g. after the session changes.
func (w *TokenWallet) Clear() {
	w.mu.Lock()
	w.tokens = make(map[string]string)
	w.mu.Unlock()
}

// fetchToken requests a single token type from the wiki. A known type that
// is missing from the response means the user lacks the right for it.
func (c *Client) fetchToken(ctx context.Context, tokenType string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "tokens")
	params.Set("type", tokenType)

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.Code == "badvalue" {
			metrics.TokenFetches.WithLabelValues(tokenType, "invalid").Inc()
			return "", &TokenError{Kind: TokenInvalid, Type: tokenType, User: c.Username(), Site: c.Site()}
		}
		metrics.TokenFetches.WithLabelValues(tokenType, "error").Inc()
		return "", fmt.Errorf("failed to get %s token: %w", tokenType, err)
	}

	tokens := getNestedMap(resp, "query", "tokens")
	token := ""
	if tokens != nil {
		token = getString(tokens, tokenType+"token")
	}
	if token == "" {
		metrics.TokenFetches.WithLabelValues(tokenType, "not_allowed").Inc()
		return "", &TokenError{Kind: TokenNotAllowed, Type: tokenType, User: c.Username(), Site: c.Site()}
	}

	metrics.TokenFetches.WithLabelValues(tokenType, "success").Inc()
	return token, nil
}
