package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

// LinkSigner binds a Client to the media bucket and a fixed expiry, yielding
// browser-usable download URLs for stored product images.
type LinkSigner struct {
	client *Client
	bucket string
	expiry time.Duration
}

// NewLinkSigner constructs a LinkSigner. Out-of-range expiries clamp to the
// download maximum.
func NewLinkSigner(client *Client, bucket string, expiry time.Duration) (*LinkSigner, error) {
	if client == nil {
		return nil, errNoSigner
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errBucketRequired
	}
	if expiry <= 0 || expiry > maxDownloadExpiry {
		expiry = maxDownloadExpiry
	}
	return &LinkSigner{client: client, bucket: bucket, expiry: expiry}, nil
}

// SignedDownloadURL returns a time-limited GET URL for a bucket object.
func (s *LinkSigner) SignedDownloadURL(ctx context.Context, objectPath string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("storage: link signer not initialised")
	}
	link, err := s.client.DownloadURL(ctx, s.bucket, objectPath, DownloadOptions{ExpiresIn: s.expiry})
	if err != nil {
		return "", err
	}
	return link.URL, nil
}
