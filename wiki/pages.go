package wiki

import (
	"context"
	"fmt"
	"net/url"

	"github.com/olgasafonova/wiki-templates-uploader/metrics"
	"github.com/olgasafonova/wiki-templates-uploader/tracing"
)

// EditResult describes a saved page revision
type EditResult struct {
	Title      string `json:"title"`
	PageID     int    `json:"page_id"`
	RevisionID int    `json:"revision_id"`
	NewPage    bool   `json:"new_page"`
	NoChange   bool   `json:"no_change"`
}

// PageExists reports whether a page with the given title exists.
func (c *Client) PageExists(ctx context.Context, title string) (bool, error) {
	if title == "" {
		return false, &ValidationError{Field: "title", Message: "page title is required"}
	}

	ctx, span := tracing.StartSpan(ctx, "wiki.page.exists")
	defer span.End()
	tracing.AddWikiAttributes(span, "query", title)

	params := url.Values{}
	params.Set("action", "query")
	params.Set("titles", title)
	params.Set("prop", "info")

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		tracing.RecordError(span, err)
		return false, err
	}

	pages := getNestedMap(resp, "query", "pages")
	if pages == nil {
		return false, fmt.Errorf("unexpected response for page %q", title)
	}

	for _, pageData := range pages {
		page, ok := pageData.(map[string]interface{})
		if !ok {
			continue
		}
		if _, invalid := page["invalid"]; invalid {
			return false, &ValidationError{
				Field:   "title",
				Value:   title,
				Message: getString(page, "invalidreason"),
			}
		}
		_, missing := page["missing"]
		return !missing, nil
	}

	return false, fmt.Errorf("page %q not found in response", title)
}

// SavePage writes text to the page, creating it if needed. The edit is
// flagged as a bot edit.
func (c *Client) SavePage(ctx context.Context, title, text, summary string) (EditResult, error) {
	if title == "" {
		return EditResult{}, &ValidationError{Field: "title", Message: "page title is required"}
	}

	ctx, span := tracing.StartSpan(ctx, "wiki.page.save")
	defer span.End()
	tracing.AddWikiAttributes(span, "edit", title)

	token, err := c.tokens.Get(ctx, "csrf")
	if err != nil {
		metrics.PageOperations.WithLabelValues("save", "error").Inc()
		return EditResult{}, fmt.Errorf("authentication failed: %w", err)
	}

	params := url.Values{}
	params.Set("action", "edit")
	params.Set("title", title)
	params.Set("text", text)
	params.Set("summary", summary)
	params.Set("bot", "1")
	params.Set("token", token)

	metrics.ContentSize.WithLabelValues("save").Observe(float64(len(text)))

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		metrics.PageOperations.WithLabelValues("save", "error").Inc()
		tracing.RecordError(span, err)
		return EditResult{}, err
	}

	edit, ok := resp["edit"].(map[string]interface{})
	if !ok {
		metrics.PageOperations.WithLabelValues("save", "error").Inc()
		return EditResult{}, fmt.Errorf("unexpected edit response for %q", title)
	}

	if result := getString(edit, "result"); result != "Success" {
		metrics.PageOperations.WithLabelValues("save", "error").Inc()
		return EditResult{}, fmt.Errorf("edit of %q failed: %s", title, result)
	}

	metrics.PageOperations.WithLabelValues("save", "success").Inc()
	_, isNew := edit["new"]
	_, noChange := edit["nochange"]
	return EditResult{
		Title:      getString(edit, "title"),
		PageID:     getInt(edit, "pageid"),
		RevisionID: getInt(edit, "newrevid"),
		NewPage:    isNew,
		NoChange:   noChange,
	}, nil
}

// PurgePage asks the wiki to drop cached renders of the page.
func (c *Client) PurgePage(ctx context.Context, title string) error {
	if title == "" {
		return &ValidationError{Field: "title", Message: "page title is required"}
	}

	ctx, span := tracing.StartSpan(ctx, "wiki.page.purge")
	defer span.End()
	tracing.AddWikiAttributes(span, "purge", title)

	params := url.Values{}
	params.Set("action", "purge")
	params.Set("titles", title)

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		metrics.PageOperations.WithLabelValues("purge", "error").Inc()
		tracing.RecordError(span, err)
		return err
	}

	purged, _ := resp["purge"].([]interface{})
	for _, p := range purged {
		entry, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		if _, isPurged := entry["purged"]; isPurged {
			metrics.PageOperations.WithLabelValues("purge", "success").Inc()
			return nil
		}
	}

	metrics.PageOperations.WithLabelValues("purge", "error").Inc()
	return fmt.Errorf("purge of %q was not confirmed", title)
}
