// Package uploader creates or updates a fixed list of wiki pages.
//
// Pages are written one at a time: check existence, save, purge, then wait
// for the pacer before the next page. The first failure stops the run;
// pages already written stay written. A dry run performs the existence
// checks and logging but no writes.
package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/olgasafonova/wiki-templates-uploader/metrics"
	"github.com/olgasafonova/wiki-templates-uploader/tracing"
	"github.com/olgasafonova/wiki-templates-uploader/wiki"
)

// DefaultSummary is the edit summary format; %s is the page title.
const DefaultSummary = "Bot created/updated page: %s"

// Site is the part of the wiki client the uploader needs.
type Site interface {
	Username() string
	PageExists(ctx context.Context, title string) (bool, error)
	SavePage(ctx context.Context, title, text, summary string) (wiki.EditResult, error)
	PurgePage(ctx context.Context, title string) error
}

// Report summarises an upload run.
type Report struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	DryRun  bool     `json:"dry_run"`
	Titles  []string `json:"titles"`
}

// Uploader writes page records to a Site.
type Uploader struct {
	site    Site
	pacer   Pacer
	logger  *slog.Logger
	summary string
}

// Option configures an Uploader
type Option func(*Uploader)

// WithPacer sets the delay strategy between writes
func WithPacer(p Pacer) Option {
	return func(u *Uploader) {
		u.pacer = p
	}
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) Option {
	return func(u *Uploader) {
		u.logger = l
	}
}

// WithSummary sets the edit summary format; %s is replaced by the title
func WithSummary(format string) Option {
	return func(u *Uploader) {
		u.summary = format
	}
}

// New creates an uploader with a fixed DefaultInterval pacer.
func New(site Site, opts ...Option) *Uploader {
	u := &Uploader{
		site:    site,
		pacer:   FixedPacer{Interval: DefaultInterval},
		logger:  slog.Default(),
		summary: DefaultSummary,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Login creates a client for cfg and authenticates it.
func Login(ctx context.Context, cfg *wiki.Config, logger *slog.Logger) (*wiki.Client, error) {
	client := wiki.NewClient(cfg, logger)
	if err := client.Login(ctx); err != nil {
		return nil, err
	}
	logger.Info("Logged in", "user", client.Username(), "site", cfg.Host)
	return client, nil
}

// UploadPages creates or updates every page in order. Without a logged-in
// session it logs and returns an empty report and no error.
func (u *Uploader) UploadPages(ctx context.Context, pages []PageRecord, dryRun bool) (Report, error) {
	report := Report{DryRun: dryRun}

	if u.site.Username() == "" {
		u.logger.Warn("Not logged in, aborting.")
		return report, nil
	}

	ctx, span := tracing.StartSpan(ctx, "uploader.upload_pages")
	defer span.End()

	for _, page := range pages {
		if err := u.uploadOne(ctx, page, dryRun, &report); err != nil {
			tracing.RecordError(span, err)
			return report, err
		}
	}

	u.logger.Info("Upload finished",
		"created", report.Created,
		"updated", report.Updated,
		"dry_run", dryRun)
	return report, nil
}

func (u *Uploader) uploadOne(ctx context.Context, page PageRecord, dryRun bool, report *Report) error {
	ctx, span := tracing.StartSpan(ctx, "uploader.page")
	defer span.End()

	u.logger.Info("Processing page", "title", page.ID)
	u.logger.Debug("Page body", "title", page.ID, "body", page.Body)

	exists, err := u.site.PageExists(ctx, page.ID)
	if err != nil {
		return fmt.Errorf("checking %q: %w", page.ID, err)
	}
	tracing.AddUploadAttributes(span, page.ID, exists, dryRun)
	metrics.RecordPage(exists, dryRun)

	if exists {
		u.logger.Info("Page already exists. Updating...", "title", page.ID, "dry_run", dryRun)
	} else {
		u.logger.Info("Creating new page", "title", page.ID, "dry_run", dryRun)
	}

	if dryRun {
		countPage(report, page.ID, exists)
		return nil
	}

	summary := strings.ReplaceAll(u.summary, "%s", page.ID)
	result, err := u.site.SavePage(ctx, page.ID, page.Body, summary)
	if err != nil {
		return fmt.Errorf("saving %q: %w", page.ID, err)
	}
	if err := u.site.PurgePage(ctx, page.ID); err != nil {
		return fmt.Errorf("purging %q: %w", page.ID, err)
	}
	countPage(report, page.ID, exists)

	u.logger.Info("Successfully saved page",
		"title", page.ID,
		"revision", result.RevisionID,
		"no_change", result.NoChange)

	if err := u.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("waiting after %q: %w", page.ID, err)
	}
	return nil
}

func countPage(report *Report, title string, exists bool) {
	if exists {
		report.Updated++
	} else {
		report.Created++
	}
	report.Titles = append(report.Titles, title)
}
