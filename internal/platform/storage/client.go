package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const (
	defaultDownloadExpiry = 5 * time.Minute
	maxDownloadExpiry     = 15 * time.Minute
)

var (
	errNoSigner       = errors.New("storage: signer is required")
	errBucketRequired = errors.New("storage: bucket name is required")
	errObjectRequired = errors.New("storage: object name is required")
	errBadMethod      = errors.New("storage: downloads allow GET or HEAD only")
	errExpiryTooLong  = errors.New("storage: expiry exceeds the permitted maximum")
)

// Client issues V4 signed download URLs through an injected Signer.
type Client struct {
	signer Signer
	scheme storage.SigningScheme
	now    func() time.Time
}

// ClientOption adjusts Client construction.
type ClientOption func(*Client)

// WithSigningScheme overrides the URL signing scheme; the default is V4.
func WithSigningScheme(scheme storage.SigningScheme) ClientOption {
	return func(c *Client) {
		if scheme != 0 {
			c.scheme = scheme
		}
	}
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds a Client around the signer.
func NewClient(signer Signer, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}
	client := &Client{
		signer: signer,
		scheme: storage.SigningSchemeV4,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// DownloadOptions shape the signed URL. Zero values mean GET with the default
// expiry and no response overrides.
type DownloadOptions struct {
	Method       string
	ExpiresIn    time.Duration
	Disposition  string
	CacheControl string
	ResponseType string
	Query        map[string]string
}

// SignedLink is a ready-to-use download URL with its validity window.
type SignedLink struct {
	URL       string
	Method    string
	ExpiresAt time.Time
}

// DownloadURL signs a time-limited URL for one bucket object. Expiry is
// capped: media links are embedded in API responses and must not outlive the
// client's interest in them.
func (c *Client) DownloadURL(ctx context.Context, bucket, object string, opts DownloadOptions) (SignedLink, error) {
	if c == nil || c.signer == nil {
		return SignedLink{}, errNoSigner
	}
	if ctx == nil {
		return SignedLink{}, errors.New("storage: context is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return SignedLink{}, errBucketRequired
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return SignedLink{}, errObjectRequired
	}

	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet && method != http.MethodHead {
		return SignedLink{}, errBadMethod
	}

	expiry := opts.ExpiresIn
	if expiry <= 0 {
		expiry = defaultDownloadExpiry
	}
	if expiry > maxDownloadExpiry {
		return SignedLink{}, errExpiryTooLong
	}
	expiresAt := c.now().Add(expiry)

	signed, err := storage.SignedURL(bucket, object, &storage.SignedURLOptions{
		GoogleAccessID:  c.signer.Email(),
		Scheme:          c.scheme,
		Method:          method,
		Expires:         expiresAt,
		QueryParameters: downloadQuery(opts),
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	})
	if err != nil {
		return SignedLink{}, fmt.Errorf("storage: sign download url: %w", err)
	}

	return SignedLink{URL: signed, Method: method, ExpiresAt: expiresAt}, nil
}

// downloadQuery assembles the response-override parameters in deterministic
// order; explicit overrides win over entries in opts.Query.
func downloadQuery(opts DownloadOptions) url.Values {
	staged := make(map[string]string, len(opts.Query)+3)
	for key, value := range opts.Query {
		staged[key] = value
	}
	if opts.Disposition != "" {
		staged["response-content-disposition"] = opts.Disposition
	}
	if opts.CacheControl != "" {
		staged["response-cache-control"] = opts.CacheControl
	}
	if opts.ResponseType != "" {
		staged["response-content-type"] = opts.ResponseType
	}
	if len(staged) == 0 {
		return nil
	}

	keys := make([]string, 0, len(staged))
	for key := range staged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := make(url.Values, len(staged))
	for _, key := range keys {
		values.Add(key, staged[key])
	}
	return values
}
