// Package authtest issues throwaway RS256 keys and tokens for tests.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/floroz/gembid/pkg/auth"
)

// Issuer is the issuer claim used by NewSigner
const Issuer = "gembid-test"

// GenerateKeys returns a fresh PKCS1 private key and PKIX public key, both PEM encoded
func GenerateKeys(t testing.TB) (privPEM, pubPEM []byte) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}

	privPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	pubBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	pubPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})

	return privPEM, pubPEM
}

// NewSigner returns a Signer able to issue and validate tokens
func NewSigner(t testing.TB) *auth.Signer {
	t.Helper()
	privPEM, pubPEM := GenerateKeys(t)
	signer, err := auth.NewSigner(privPEM, pubPEM, Issuer)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	return signer
}

// Token issues a one hour token for id
func Token(t testing.TB, signer *auth.Signer, id auth.Identity) string {
	t.Helper()
	token, err := signer.IssueToken(id, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	return token
}
