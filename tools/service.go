package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/olgasafonova/wiki-templates-uploader/internal/chunksize"
	"github.com/olgasafonova/wiki-templates-uploader/internal/ipaddr"
	"github.com/olgasafonova/wiki-templates-uploader/uploader"
	"github.com/olgasafonova/wiki-templates-uploader/wiki"
)

// UploadPagesArgs are the arguments of wiki_upload_pages.
type UploadPagesArgs struct {
	Pages   []uploader.PageRecord `json:"pages" jsonschema:"Pages to create or update"`
	DryRun  bool                  `json:"dry_run,omitempty" jsonschema:"Only report what would be written"`
	Summary string                `json:"summary,omitempty" jsonschema:"Edit summary; %s is replaced by the page title"`
}

// UploadPagesResult reports an upload run.
type UploadPagesResult struct {
	LoggedIn bool     `json:"logged_in"`
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	DryRun   bool     `json:"dry_run"`
	Titles   []string `json:"titles,omitempty"`
}

// CheckTokensArgs are the arguments of wiki_check_tokens.
type CheckTokensArgs struct {
	Types []string `json:"types" jsonschema:"Token types to check"`
}

// TokenStatus is the availability of one token type.
type TokenStatus struct {
	Type      string `json:"type"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// CheckTokensResult lists token availability in request order.
type CheckTokensResult struct {
	User   string        `json:"user,omitempty"`
	Tokens []TokenStatus `json:"tokens"`
}

// ParseChunkSizeArgs are the arguments of wiki_parse_chunk_size.
type ParseChunkSizeArgs struct {
	Option string `json:"option,omitempty" jsonschema:"-chunked:4mi or just 4mi; empty means the default size"`
}

// ParseChunkSizeResult is the decoded chunk size.
type ParseChunkSizeResult struct {
	Option string `json:"option"`
	Bytes  int64  `json:"bytes"`
	Valid  bool   `json:"valid"`
}

// CheckIPArgs are the arguments of wiki_check_ip.
type CheckIPArgs struct {
	Value string `json:"value" jsonschema:"Text to check"`
}

// CheckIPResult tells whether Value is an IP literal.
type CheckIPResult struct {
	Value string `json:"value"`
	IsIP  bool   `json:"is_ip"`
}

// TokenSource hands out API tokens by type.
type TokenSource interface {
	Get(ctx context.Context, tokenType string) (string, error)
}

// Service implements the tool methods on top of a wiki session.
type Service struct {
	site   uploader.Site
	tokens TokenSource
	pacer  uploader.Pacer
	logger *slog.Logger

	// uploadMu keeps upload runs sequential so pacing holds across calls.
	uploadMu sync.Mutex
}

// NewService creates a service backed by a wiki client.
func NewService(client *wiki.Client, pacer uploader.Pacer, logger *slog.Logger) *Service {
	return newService(client, client.Tokens(), pacer, logger)
}

func newService(site uploader.Site, tokens TokenSource, pacer uploader.Pacer, logger *slog.Logger) *Service {
	if pacer == nil {
		pacer = uploader.FixedPacer{Interval: uploader.DefaultInterval}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{site: site, tokens: tokens, pacer: pacer, logger: logger}
}

// UploadPages creates or updates the given pages.
func (s *Service) UploadPages(ctx context.Context, args UploadPagesArgs) (UploadPagesResult, error) {
	if len(args.Pages) == 0 {
		return UploadPagesResult{}, fmt.Errorf("pages is required")
	}
	for i, p := range args.Pages {
		if strings.TrimSpace(p.ID) == "" {
			return UploadPagesResult{}, fmt.Errorf("page %d: id is required", i)
		}
	}

	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	opts := []uploader.Option{uploader.WithPacer(s.pacer), uploader.WithLogger(s.logger)}
	if args.Summary != "" {
		opts = append(opts, uploader.WithSummary(args.Summary))
	}

	report, err := uploader.New(s.site, opts...).UploadPages(ctx, args.Pages, args.DryRun)
	result := UploadPagesResult{
		LoggedIn: s.site.Username() != "",
		Created:  report.Created,
		Updated:  report.Updated,
		DryRun:   report.DryRun,
		Titles:   report.Titles,
	}
	return result, err
}

// CheckTokens reports which token types the session may obtain.
func (s *Service) CheckTokens(ctx context.Context, args CheckTokensArgs) (CheckTokensResult, error) {
	if len(args.Types) == 0 {
		return CheckTokensResult{}, fmt.Errorf("types is required")
	}

	result := CheckTokensResult{User: s.site.Username()}
	for _, t := range args.Types {
		status := TokenStatus{Type: t}
		_, err := s.tokens.Get(ctx, t)
		var tokErr *wiki.TokenError
		switch {
		case err == nil:
			status.Available = true
		case errors.As(err, &tokErr):
			status.Reason = tokErr.Error()
		default:
			return result, err
		}
		result.Tokens = append(result.Tokens, status)
	}
	return result, nil
}

// ParseChunkSize converts a chunk size option to bytes.
func (s *Service) ParseChunkSize(_ context.Context, args ParseChunkSizeArgs) (ParseChunkSizeResult, error) {
	size, err := chunksize.ParseArg(args.Option)
	if err != nil && !errors.Is(err, chunksize.ErrInvalid) {
		return ParseChunkSizeResult{}, err
	}
	return ParseChunkSizeResult{Option: args.Option, Bytes: size, Valid: err == nil}, nil
}

// CheckIP reports whether the value is a bare IP address.
func (s *Service) CheckIP(_ context.Context, args CheckIPArgs) (CheckIPResult, error) {
	return CheckIPResult{Value: args.Value, IsIP: ipaddr.IsIP(args.Value)}, nil
}
