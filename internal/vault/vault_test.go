package vault

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/healthscore/internal/domain"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, MinKeyLength)
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New([]byte("too-short"))
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNewWipesMasterKey(t *testing.T) {
	master := testKey(0x42)
	_, err := New(master)
	require.NoError(t, err)
	require.Equal(t, make([]byte, MinKeyLength), master)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New(testKey(1))
	require.NoError(t, err)

	ct, err := v.Encrypt([]byte("hello"), []byte("user-1"))
	require.NoError(t, err)

	pt, err := v.Decrypt(ct, []byte("user-1"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(pt))
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	v, err := New(testKey(1))
	require.NoError(t, err)

	a, err := v.Encrypt([]byte("same"), nil)
	require.NoError(t, err)
	b, err := v.Encrypt([]byte("same"), nil)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDecryptDetectsTampering(t *testing.T) {
	v, err := New(testKey(1))
	require.NoError(t, err)

	ct, err := v.Encrypt([]byte("secret"), []byte("user-1"))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = v.Decrypt(tampered, []byte("user-1"))
	require.ErrorIs(t, err, domain.ErrIntegrity)
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	v, err := New(testKey(1))
	require.NoError(t, err)

	cases := map[string]string{
		"not base64":  "%%%",
		"too short":   base64.StdEncoding.EncodeToString([]byte{1, 2, 3}),
		"bad version": base64.StdEncoding.EncodeToString(append([]byte{9}, make([]byte, 40)...)),
	}
	for name, ct := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Decrypt(ct, nil)
			require.ErrorIs(t, err, domain.ErrIntegrity)
		})
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	a, err := New(testKey(1))
	require.NoError(t, err)
	b, err := New(testKey(2))
	require.NoError(t, err)

	ct, err := a.Encrypt([]byte("secret"), nil)
	require.NoError(t, err)

	_, err = b.Decrypt(ct, nil)
	require.ErrorIs(t, err, domain.ErrIntegrity)
}

func TestCredentialBoundToUser(t *testing.T) {
	v, err := New(testKey(7))
	require.NoError(t, err)

	cred := domain.Credential{Email: "runner@example.com", Password: "hunter2"}
	ct, err := v.SealCredential("user-a", cred)
	require.NoError(t, err)
	require.NotContains(t, ct, "hunter2")

	opened, err := v.OpenCredential("user-a", ct)
	require.NoError(t, err)
	require.Equal(t, cred, opened)

	_, err = v.OpenCredential("user-b", ct)
	require.ErrorIs(t, err, domain.ErrIntegrity)
}
