package token

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	jose "github.com/go-jose/go-jose/v4"
)

// Kind classifies why a token was refused.
type Kind int

const (
	// KindMalformed covers tokens that are not a JOSE object at all, or
	// whose decrypted claims are unusable.
	KindMalformed Kind = iota
	// KindDecryption covers well-formed tokens sealed for a different key.
	KindDecryption
	// KindExpired covers tokens whose expiry is at or before now.
	KindExpired
	// KindNotYetValid covers tokens presented before their not-before.
	KindNotYetValid
)

// Client-visible rejection details. These travel inside the
// IDENTITY_REJECTION failure payload, so existing device builds parse
// against the exact strings.
const (
	DetailInvalidClaim = "Claim was invalid"
	DetailExpired      = "This token is already expired"
	DetailNotYetValid  = "This token is not valid yet"
)

// VerificationError reports a refused token. Reason carries the
// client-visible detail text; the wrapped cause stays server-side.
type VerificationError struct {
	Kind   Kind
	Reason string
	cause  error
}

func (e *VerificationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("token rejected: %s: %v", e.Reason, e.cause)
	}
	return "token rejected: " + e.Reason
}

func (e *VerificationError) Unwrap() error { return e.cause }

func refuse(kind Kind, reason string, cause error) error {
	return &VerificationError{Kind: kind, Reason: reason, cause: cause}
}

// The account service seals tokens with the node's RSA public key. Both
// the legacy RSA1_5 tokens and the current OAEP ones must keep verifying.
var (
	keyAlgorithms = []jose.KeyAlgorithm{jose.RSA_OAEP_256, jose.RSA_OAEP, jose.RSA1_5}
	contentTypes  = []jose.ContentEncryption{
		jose.A256CBC_HS512, jose.A192CBC_HS384, jose.A128CBC_HS256,
		jose.A256GCM, jose.A192GCM, jose.A128GCM,
	}
)

// Verifier decrypts and validates bearer tokens against one process-wide
// private key. The key is immutable after construction; Verify is safe
// for concurrent use.
type Verifier struct {
	key *rsa.PrivateKey
	now func() time.Time
}

// NewVerifier loads the RSA private key from a PEM file (PKCS#1 or
// PKCS#8).
func NewVerifier(pemPath string) (*Verifier, error) {
	raw, err := os.ReadFile(pemPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := parsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", pemPath, err)
	}
	return NewVerifierFromKey(key), nil
}

// NewVerifierFromKey wraps an already-loaded key.
func NewVerifierFromKey(key *rsa.PrivateKey) *Verifier {
	return &Verifier{key: key, now: time.Now}
}

func parsePrivateKey(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported key type %T", parsed)
	}
	return key, nil
}

// Verify decrypts an encrypted token (compact or JSON JWE serialization)
// and returns its claims. Failures come back as a *VerificationError.
func (v *Verifier) Verify(encrypted string) (*Claims, error) {
	obj, err := jose.ParseEncrypted(encrypted, keyAlgorithms, contentTypes)
	if err != nil {
		return nil, refuse(KindMalformed, DetailInvalidClaim, err)
	}

	payload, err := obj.Decrypt(v.key)
	if err != nil {
		return nil, refuse(KindDecryption, DetailInvalidClaim, err)
	}

	claims := new(Claims)
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, refuse(KindMalformed, DetailInvalidClaim, err)
	}

	now := v.now().UTC()
	switch {
	case claims.Expiry == 0:
		// A token the account service never bounded is not one we honor.
		return nil, refuse(KindMalformed, DetailInvalidClaim, nil)
	case !claims.ExpiresAt().After(now):
		return nil, refuse(KindExpired, DetailExpired, nil)
	case claims.NotBefore != 0 && time.Unix(claims.NotBefore, 0).After(now):
		return nil, refuse(KindNotYetValid, DetailNotYetValid, nil)
	}

	return claims, nil
}
