package wiki

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/olgasafonova/wiki-templates-uploader/metrics"
	"github.com/olgasafonova/wiki-templates-uploader/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// FileUpload describes a file to upload to the wiki
type FileUpload struct {
	// Filename is the target name, with or without the "File:" prefix
	Filename string
	Data     []byte

	// ChunkSize splits the upload into pieces of this many bytes.
	// Zero or a value not smaller than the file sends it in one request.
	ChunkSize int64

	Comment        string
	Text           string
	IgnoreWarnings bool
}

// FileUploadResult describes a completed upload
type FileUploadResult struct {
	Filename string   `json:"filename"`
	URL      string   `json:"url,omitempty"`
	Size     int      `json:"size"`
	Chunks   int      `json:"chunks"`
	Warnings []string `json:"warnings,omitempty"`
}

// UploadFile uploads a file, in chunks when ChunkSize requires it.
func (c *Client) UploadFile(ctx context.Context, args FileUpload) (FileUploadResult, error) {
	filename := strings.TrimSpace(strings.TrimPrefix(args.Filename, "File:"))
	if filename == "" {
		return FileUploadResult{}, &ValidationError{Field: "filename", Message: "filename is required"}
	}
	if len(args.Data) == 0 {
		return FileUploadResult{}, &ValidationError{Field: "data", Value: filename, Message: "file is empty"}
	}
	if args.ChunkSize < 0 {
		return FileUploadResult{}, &ValidationError{
			Field:   "chunk_size",
			Value:   strconv.FormatInt(args.ChunkSize, 10),
			Message: "chunk size must not be negative",
		}
	}

	ctx, span := tracing.StartSpan(ctx, "wiki.file.upload")
	defer span.End()
	tracing.AddWikiAttributes(span, "upload", "File:"+filename)
	span.SetAttributes(
		attribute.Int("wiki.upload.size", len(args.Data)),
		attribute.Int64("wiki.upload.chunk_size", args.ChunkSize),
	)

	token, err := c.tokens.Get(ctx, "csrf")
	if err != nil {
		return FileUploadResult{}, fmt.Errorf("failed to get edit token: %w", err)
	}

	metrics.ContentSize.WithLabelValues("upload").Observe(float64(len(args.Data)))

	var result FileUploadResult
	if args.ChunkSize == 0 || args.ChunkSize >= int64(len(args.Data)) {
		result, err = c.uploadWhole(ctx, filename, token, args)
	} else {
		result, err = c.uploadChunked(ctx, filename, token, args)
	}
	if err != nil {
		metrics.PageOperations.WithLabelValues("upload", "error").Inc()
		tracing.RecordError(span, err)
		return result, err
	}

	metrics.PageOperations.WithLabelValues("upload", "success").Inc()
	c.logger.Info("File uploaded",
		"filename", result.Filename,
		"size", len(args.Data),
		"chunks", result.Chunks)
	return result, nil
}

func (c *Client) uploadWhole(ctx context.Context, filename, token string, args FileUpload) (FileUploadResult, error) {
	params := commitParams(filename, token, args)
	resp, err := c.multipartRequest(ctx, params, "file", filename, args.Data)
	if err != nil {
		return FileUploadResult{}, err
	}
	result, err := parseUploadResponse(resp, filename)
	result.Chunks = 1
	return result, err
}

func (c *Client) uploadChunked(ctx context.Context, filename, token string, args FileUpload) (FileUploadResult, error) {
	size := int64(len(args.Data))
	var (
		offset  int64
		filekey string
		chunks  int
	)

	for offset < size {
		end := offset + args.ChunkSize
		if end > size {
			end = size
		}

		params := url.Values{}
		params.Set("action", "upload")
		params.Set("stash", "1")
		params.Set("filename", filename)
		params.Set("filesize", strconv.FormatInt(size, 10))
		params.Set("offset", strconv.FormatInt(offset, 10))
		params.Set("token", token)
		if filekey != "" {
			params.Set("filekey", filekey)
		}
		if args.IgnoreWarnings {
			params.Set("ignorewarnings", "1")
		}

		resp, err := c.multipartRequest(ctx, params, "chunk", filename, args.Data[offset:end])
		if err != nil {
			return FileUploadResult{Filename: filename, Chunks: chunks}, fmt.Errorf("chunk at offset %d failed: %w", offset, err)
		}
		chunks++
		metrics.ChunkUploads.Inc()

		upload, ok := resp["upload"].(map[string]interface{})
		if !ok {
			return FileUploadResult{Filename: filename, Chunks: chunks}, fmt.Errorf("unexpected chunk response at offset %d", offset)
		}
		if key := getString(upload, "filekey"); key != "" {
			filekey = key
		}

		switch status := getString(upload, "result"); status {
		case "Continue":
			next := int64(getInt(upload, "offset"))
			if next <= offset {
				return FileUploadResult{Filename: filename, Chunks: chunks}, fmt.Errorf("server did not advance past offset %d", offset)
			}
			offset = next
		case "Success":
			offset = size
		case "Warning":
			if !args.IgnoreWarnings {
				return FileUploadResult{Filename: filename, Chunks: chunks, Warnings: uploadWarnings(upload)},
					fmt.Errorf("upload of %q has warnings: %s", filename, strings.Join(uploadWarnings(upload), "; "))
			}
			offset = end
		default:
			return FileUploadResult{Filename: filename, Chunks: chunks}, fmt.Errorf("chunk at offset %d returned status %q", offset, status)
		}

		c.logger.Debug("Chunk uploaded",
			"filename", filename,
			"offset", offset,
			"size", size)
	}

	if filekey == "" {
		return FileUploadResult{Filename: filename, Chunks: chunks}, fmt.Errorf("server returned no file key for %q", filename)
	}

	params := commitParams(filename, token, args)
	params.Set("filekey", filekey)
	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return FileUploadResult{Filename: filename, Chunks: chunks}, fmt.Errorf("commit failed: %w", err)
	}

	result, err := parseUploadResponse(resp, filename)
	result.Chunks = chunks
	return result, err
}

func commitParams(filename, token string, args FileUpload) url.Values {
	params := url.Values{}
	params.Set("action", "upload")
	params.Set("filename", filename)
	params.Set("token", token)
	if args.Comment != "" {
		params.Set("comment", args.Comment)
	}
	if args.Text != "" {
		params.Set("text", args.Text)
	}
	if args.IgnoreWarnings {
		params.Set("ignorewarnings", "1")
	}
	return params
}

// multipartRequest sends params plus one file part as multipart/form-data
func (c *Client) multipartRequest(ctx context.Context, params url.Values, field, filename string, data []byte) (map[string]interface{}, error) {
	params.Set("format", "json")
	return c.do(ctx, params.Get("action"), func() (io.Reader, string, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)

		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := w.WriteField(k, params.Get(k)); err != nil {
				return nil, "", err
			}
		}

		part, err := w.CreateFormFile(field, filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	})
}

func parseUploadResponse(resp map[string]interface{}, filename string) (FileUploadResult, error) {
	result := FileUploadResult{Filename: filename}

	upload, ok := resp["upload"].(map[string]interface{})
	if !ok {
		return result, fmt.Errorf("unexpected upload response for %q", filename)
	}
	if name := getString(upload, "filename"); name != "" {
		result.Filename = name
	}

	switch status := getString(upload, "result"); status {
	case "Success":
		if imageinfo, ok := upload["imageinfo"].(map[string]interface{}); ok {
			result.URL = getString(imageinfo, "url")
			result.Size = getInt(imageinfo, "size")
		}
		return result, nil
	case "Warning":
		result.Warnings = uploadWarnings(upload)
		return result, fmt.Errorf("upload of %q has warnings: %s", filename, strings.Join(result.Warnings, "; "))
	default:
		return result, fmt.Errorf("upload of %q returned status %q", filename, status)
	}
}

func uploadWarnings(upload map[string]interface{}) []string {
	warnings, _ := upload["warnings"].(map[string]interface{})
	out := make([]string, 0, len(warnings))
	for k, v := range warnings {
		out = append(out, fmt.Sprintf("%s: %v", k, v))
	}
	sort.Strings(out)
	return out
}
