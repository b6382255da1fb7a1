// Package presigned uploads data to signed URLs issued by package signedurl.
package presigned

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tendant/signed-upload/pkg/signedurl"
)

var (
	// ErrExpired is returned when the signed URL has already expired
	ErrExpired = errors.New("presigned: URL has expired")

	// ErrRejected is returned when storage refuses the upload with a 4xx status
	ErrRejected = errors.New("presigned: upload rejected")
)

// Client provides methods for uploading files to signed URLs
type Client struct {
	httpClient    *http.Client
	retryAttempts int
	retryDelay    time.Duration
	progressFunc  ProgressFunc
	now           func() time.Time
}

// ProgressFunc is called during upload to report progress
// It receives the number of bytes uploaded so far
type ProgressFunc func(bytesUploaded int64)

// ClientOption is a functional option for configuring a Client
type ClientOption func(*Client)

// NewClient creates a new upload client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Minute,
		},
		retryAttempts: 3,
		retryDelay:    1 * time.Second,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRetry configures retry behavior
func WithRetry(attempts int, delay time.Duration) ClientOption {
	return func(c *Client) {
		if attempts < 1 {
			attempts = 1
		}
		c.retryAttempts = attempts
		c.retryDelay = delay
	}
}

// WithProgress sets a progress callback function
func WithProgress(fn ProgressFunc) ClientOption {
	return func(c *Client) {
		c.progressFunc = fn
	}
}

// WithClock sets the time source used for expiry checks
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// StatusError reports a non-2xx upload response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upload failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("upload failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return ErrRejected
	}
	return nil
}

// Upload PUTs data to signed.URL with every header the URL was signed with.
// Data that implements io.Seeker is sent from its current offset with a
// known Content-Length and rewound to that offset between attempts; other
// readers get a single attempt and are sent chunked.
//
// Example:
//
//	client := presigned.NewClient()
//	err := client.Upload(ctx, signed, file)
func (c *Client) Upload(ctx context.Context, signed *signedurl.SignedURL, data io.Reader) error {
	if !signed.ExpiresAt.IsZero() && !c.now().Before(signed.ExpiresAt) {
		return ErrExpired
	}

	method := signed.Method
	if method == "" {
		method = http.MethodPut
	}

	seeker, canRewind := data.(io.Seeker)
	attempts := c.retryAttempts
	start := int64(0)
	if canRewind {
		offset, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("failed to read upload body offset: %w", err)
		}
		start = offset
	} else {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
			if _, err := seeker.Seek(start, io.SeekStart); err != nil {
				return fmt.Errorf("failed to rewind upload body: %w", err)
			}
		}

		err := c.put(ctx, method, signed, data)
		if err == nil {
			return nil
		}
		lastErr = err

		// Don't retry on client errors (4xx)
		if errors.Is(err, ErrRejected) {
			return err
		}
	}

	return fmt.Errorf("upload failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) put(ctx context.Context, method string, signed *signedurl.SignedURL, data io.Reader) error {
	length, err := bodyLength(data)
	if err != nil {
		return err
	}

	var body io.Reader = http.NoBody
	if length != 0 {
		body = data
		if c.progressFunc != nil {
			body = &progressReader{reader: data, callback: c.progressFunc}
		}
		body = io.NopCloser(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, signed.URL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = length
	for k, values := range signed.Headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if signed.ContentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", signed.ContentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
}

// bodyLength returns the bytes left in data, or -1 when it cannot be known
// without reading it. Seekers are left at their current offset.
func bodyLength(data io.Reader) (int64, error) {
	if data == nil {
		return 0, nil
	}
	seeker, ok := data.(io.Seeker)
	if !ok {
		return -1, nil
	}
	cur, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("failed to measure upload body: %w", err)
	}
	end, err := seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to measure upload body: %w", err)
	}
	if _, err := seeker.Seek(cur, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to rewind upload body: %w", err)
	}
	return end - cur, nil
}

// progressReader wraps an io.Reader to track upload progress
type progressReader struct {
	reader    io.Reader
	bytesRead int64
	callback  ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.bytesRead += int64(n)
	if pr.callback != nil && n > 0 {
		pr.callback(pr.bytesRead)
	}
	return n, err
}
