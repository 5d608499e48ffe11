package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func mint(t *testing.T, pub *rsa.PublicKey, claims map[string]any) string {
	t.Helper()
	enc, err := jose.NewEncrypter(
		jose.A256CBC_HS512,
		jose.Recipient{Algorithm: jose.RSA_OAEP_256, Key: pub},
		nil,
	)
	require.NoError(t, err)

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	obj, err := enc.Encrypt(payload)
	require.NoError(t, err)

	compact, err := obj.CompactSerialize()
	require.NoError(t, err)
	return compact
}

func TestVerifyValidToken(t *testing.T) {
	key := testKey(t)
	v := NewVerifierFromKey(key)

	encrypted := mint(t, &key.PublicKey, map[string]any{
		"sub":         "account-service",
		"aud":         "chat-fabric",
		"jti":         "P1",
		"vdi":         "vendor-7",
		"roles":       []string{"participant"},
		"permissions": []string{"chat:send"},
		"exp":         time.Now().Add(time.Hour).Unix(),
		"iat":         time.Now().Unix(),
	})

	claims, err := v.Verify(encrypted)
	require.NoError(t, err)

	assert.Equal(t, "P1", claims.ParticipantIdentifier())
	assert.Equal(t, "vendor-7", claims.VendorIdentifier)
	assert.Equal(t, "chat-fabric", claims.Audience)
	assert.True(t, claims.HasRoles("participant", "admin"))
	assert.False(t, claims.HasRoles("admin"))
	assert.True(t, claims.HasPermissions("chat:send"))
	assert.False(t, claims.HasPermissions("chat:moderate"))
}

func TestVerifyJSONSerialization(t *testing.T) {
	key := testKey(t)
	v := NewVerifierFromKey(key)

	enc, err := jose.NewEncrypter(
		jose.A256CBC_HS512,
		jose.Recipient{Algorithm: jose.RSA_OAEP_256, Key: &key.PublicKey},
		nil,
	)
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]any{
		"jti": "P2",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	require.NoError(t, err)

	obj, err := enc.Encrypt(payload)
	require.NoError(t, err)

	claims, err := v.Verify(obj.FullSerialize())
	require.NoError(t, err)
	assert.Equal(t, "P2", claims.ID)
}

func TestVerifyExpiredToken(t *testing.T) {
	key := testKey(t)
	v := NewVerifierFromKey(key)

	encrypted := mint(t, &key.PublicKey, map[string]any{
		"jti": "P1",
		"exp": time.Now().Add(-time.Second).Unix(),
	})

	_, err := v.Verify(encrypted)
	require.Error(t, err)

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindExpired, verr.Kind)
	assert.Equal(t, "This token is already expired", verr.Reason)
}

func TestVerifyNotYetValidToken(t *testing.T) {
	key := testKey(t)
	v := NewVerifierFromKey(key)

	encrypted := mint(t, &key.PublicKey, map[string]any{
		"jti": "P1",
		"exp": time.Now().Add(2 * time.Hour).Unix(),
		"nbf": time.Now().Add(time.Hour).Unix(),
	})

	_, err := v.Verify(encrypted)
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindNotYetValid, verr.Kind)
	assert.Equal(t, DetailNotYetValid, verr.Reason)
}

func TestVerifyGarbageToken(t *testing.T) {
	v := NewVerifierFromKey(testKey(t))

	_, err := v.Verify("not even remotely a token")
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindMalformed, verr.Kind)
	assert.Equal(t, "Claim was invalid", verr.Reason)
}

func TestVerifyWrongKey(t *testing.T) {
	minterKey := testKey(t)
	nodeKey := testKey(t)
	v := NewVerifierFromKey(nodeKey)

	encrypted := mint(t, &minterKey.PublicKey, map[string]any{
		"jti": "P1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := v.Verify(encrypted)
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindDecryption, verr.Kind)
	assert.Equal(t, DetailInvalidClaim, verr.Reason)
}

func TestVerifyUnboundedTokenRefused(t *testing.T) {
	key := testKey(t)
	v := NewVerifierFromKey(key)

	encrypted := mint(t, &key.PublicKey, map[string]any{"jti": "P1"})

	_, err := v.Verify(encrypted)
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindMalformed, verr.Kind)
}

func TestNewVerifierLoadsPEM(t *testing.T) {
	key := testKey(t)
	dir := t.TempDir()

	pkcs1 := filepath.Join(dir, "pkcs1.pem")
	require.NoError(t, os.WriteFile(pkcs1, pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}), 0o600))

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pkcs8 := filepath.Join(dir, "pkcs8.pem")
	require.NoError(t, os.WriteFile(pkcs8, pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: der,
	}), 0o600))

	for _, path := range []string{pkcs1, pkcs8} {
		v, err := NewVerifier(path)
		require.NoError(t, err)

		encrypted := mint(t, &key.PublicKey, map[string]any{
			"jti": "P9",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		claims, err := v.Verify(encrypted)
		require.NoError(t, err)
		assert.Equal(t, "P9", claims.ID)
	}
}

func TestNewVerifierRejectsJunkFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pem")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a key"), 0o600))

	_, err := NewVerifier(path)
	require.Error(t, err)
}

func TestNewVerifierMissingFile(t *testing.T) {
	_, err := NewVerifier(filepath.Join(t.TempDir(), "absent.pem"))
	require.Error(t, err)
}
