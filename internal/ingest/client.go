package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/ocr-batch/constants"
	"github.com/joseph-ayodele/ocr-batch/internal/report"
)

// StatusError is a non-200 reply from the service.
type StatusError struct {
	StatusCode int
	Detail     string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
}

// Client uploads local image files to the extract endpoint.
type Client struct {
	baseURL    string
	http       *http.Client
	logger     *slog.Logger
	maxRetries int
}

type ClientOption func(*Client)

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithMaxRetries sets how often a rate-limited upload is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

func NewClient(baseURL string, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: 5 * time.Minute},
		logger:     logger,
		maxRetries: 3,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Upload sends paths as one batch. The raw body is validated against the
// response schema before it is parsed. A 429 is retried after Retry-After.
func (c *Client) Upload(ctx context.Context, paths []string) (*report.BatchResult, error) {
	body, contentType, err := buildBody(paths)
	if err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		res, err := c.post(ctx, body, contentType)
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests || attempt >= c.maxRetries {
			return res, err
		}
		wait := se.RetryAfter
		if wait <= 0 {
			wait = time.Second
		}
		c.logger.Warn("rate limited, waiting", "retry_after", wait, "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) post(ctx context.Context, body []byte, contentType string) (*report.BatchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+constants.ExtractTextPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		se := &StatusError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(data))}
		var d struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &d) == nil && d.Detail != "" {
			se.Detail = d.Detail
		}
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			se.RetryAfter = time.Duration(s) * time.Second
		}
		return nil, se
	}

	if err := report.Validate(data); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	res, err := report.Parse(data)
	if err != nil {
		return nil, err
	}
	if err := res.CheckCounts(); err != nil {
		return nil, fmt.Errorf("inconsistent response: %w", err)
	}
	return res, nil
}

func buildBody(paths []string) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", p, err)
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`,
			constants.UploadFieldName, filepath.Base(p)))
		h.Set("Content-Type", contentTypeOf(p, data))
		w, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := w.Write(data); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// contentTypeOf prefers the extension since sniffing does not know HEIC.
func contentTypeOf(path string, data []byte) string {
	ext := constants.NormalizeExt(filepath.Ext(path))
	if constants.IsHEICExt(ext) {
		return "image/" + strings.TrimPrefix(ext, ".")
	}
	if ct := mime.TypeByExtension("." + ext); strings.HasPrefix(ct, constants.ImageContentTypePrefix) {
		return ct
	}
	return http.DetectContentType(data)
}
