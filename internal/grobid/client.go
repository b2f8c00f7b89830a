// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package grobid is a client for the GROBID REST service and a parser for the
// TEI documents it returns.
package grobid

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/workflow-miner/internal/httputil"
)

const (
	// DefaultURL is where the documented container publishes GROBID.
	DefaultURL = "http://localhost:8070"

	// DefaultTimeout bounds one full-text processing request.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries bounds the attempts against a busy (429/503) server
	// so that retries leave most of DefaultTimeout for processing.
	DefaultMaxRetries = 3

	// aliveTimeout bounds the liveness probe.
	aliveTimeout = 5 * time.Second

	pathIsAlive  = "/api/isalive"
	pathFulltext = "/api/processFulltextDocument"

	// formField is the multipart field GROBID reads the PDF from.
	formField = "input"
)

// Client talks to one GROBID server.
type Client struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	MaxRetries int
}

// NewClient returns a client for baseURL with default timeouts. An empty
// baseURL selects DefaultURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Timeout:    timeout,
		HTTPClient: &http.Client{},
		MaxRetries: DefaultMaxRetries,
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

// IsAlive reports whether the server answers its liveness endpoint with 200.
// A non-nil error describes why it is not alive.
func (c *Client) IsAlive(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, aliveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+pathIsAlive, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("could not connect to GROBID server: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GROBID server not responding correctly (status %d)", resp.StatusCode)
	}
	return nil
}

// ProcessFulltext uploads the PDF at pdfPath to processFulltextDocument and
// returns the TEI XML response.
func (c *Client) ProcessFulltext(ctx context.Context, pdfPath string) ([]byte, error) {
	body, contentType, err := multipartPDF(pdfPath)
	if err != nil {
		return nil, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+pathFulltext, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/xml")

	resp, err := httputil.DoWithRetry(ctx, c.httpClient(), req, c.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("calling GROBID: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GROBID returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading GROBID response: %w", err)
	}
	return data, nil
}

// multipartPDF encodes the file as the "input" form field.
func multipartPDF(pdfPath string) ([]byte, string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(formField, filepath.Base(pdfPath))
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("reading PDF %s: %w", pdfPath, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
