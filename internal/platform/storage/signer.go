// Package storage produces signed download URLs for product media stored in
// Google Cloud Storage. Seed-data images are absolute URLs and bypass this
// package entirely; only bucket object paths are signed.
package storage

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// Signer produces the signature Cloud Storage verifies on a signed URL. The
// email doubles as the GoogleAccessID embedded in the URL.
type Signer interface {
	Email() string
	SignBytes(ctx context.Context, payload []byte) ([]byte, error)
}

// ServiceAccountSigner signs with the RSA key of a service account JSON
// credential, so the server needs no ambient IAM signing permission.
type ServiceAccountSigner struct {
	email string
	key   *rsa.PrivateKey
}

var _ Signer = (*ServiceAccountSigner)(nil)

// NewServiceAccountSignerFromJSON parses a service account credential and
// returns a signer bound to its key and client email.
func NewServiceAccountSignerFromJSON(raw []byte) (*ServiceAccountSigner, error) {
	if len(raw) == 0 {
		return nil, errors.New("storage: service account credential is empty")
	}

	var credential struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(raw, &credential); err != nil {
		return nil, fmt.Errorf("storage: decode service account credential: %w", err)
	}

	email := strings.TrimSpace(credential.ClientEmail)
	if email == "" {
		return nil, errors.New("storage: credential is missing client_email")
	}
	pemKey := strings.TrimSpace(credential.PrivateKey)
	if pemKey == "" {
		return nil, errors.New("storage: credential is missing private_key")
	}

	key, err := decodeRSAKey(pemKey)
	if err != nil {
		return nil, err
	}
	return &ServiceAccountSigner{email: email, key: key}, nil
}

// NewServiceAccountSigner builds a signer from an explicit account email and
// a PEM private key. Use it when the secret holds only the key material and
// the account email lives in plain configuration.
func NewServiceAccountSigner(email string, pemKey []byte) (*ServiceAccountSigner, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.New("storage: signer email is required")
	}
	trimmed := strings.TrimSpace(string(pemKey))
	if trimmed == "" {
		return nil, errors.New("storage: signer key is empty")
	}

	key, err := decodeRSAKey(trimmed)
	if err != nil {
		return nil, err
	}
	return &ServiceAccountSigner{email: email, key: key}, nil
}

// Email returns the service account email used as the GoogleAccessID.
func (s *ServiceAccountSigner) Email() string {
	if s == nil {
		return ""
	}
	return s.email
}

// SignBytes signs the payload with RSA-SHA256, the scheme signed URLs expect.
func (s *ServiceAccountSigner) SignBytes(ctx context.Context, payload []byte) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("storage: signer has no key")
	}
	if len(payload) == 0 {
		return nil, errors.New("storage: nothing to sign")
	}
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	digest := sha256.Sum256(payload)
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("storage: sign payload: %w", err)
	}
	return signature, nil
}

// decodeRSAKey accepts both encodings service account keys ship with:
// PKCS#8 (current) and PKCS#1 (legacy exports).
func decodeRSAKey(pemKey string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, errors.New("storage: private_key is not valid PEM")
	}

	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("storage: private_key is not an RSA key")
		}
		return key, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("storage: parse private_key: %w", err)
	}
	return key, nil
}
