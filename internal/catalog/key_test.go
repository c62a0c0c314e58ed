package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_ParseAndString(t *testing.T) {
	hex := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	k, err := ParseKey(hex + "\n")
	require.NoError(t, err)
	assert.Equal(t, hex, k.String())

	_, err = ParseKey("abcd")
	assert.Error(t, err)
	_, err = ParseKey(strings.Repeat("zz", 32))
	assert.Error(t, err)
}

func TestKey_SealUnseal(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)

	sealed, err := k.Seal(PurposeExport, []byte("bundle"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "bundle")

	plain, err := k.Unseal(PurposeExport, sealed)
	require.NoError(t, err)
	assert.Equal(t, "bundle", string(plain))

	again, err := k.Seal(PurposeExport, []byte("bundle"))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonces must differ")
}

func TestKey_UnsealFailures(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)
	other, err := GenerateKey()
	require.NoError(t, err)

	sealed, err := k.Seal(PurposeExport, []byte("bundle"))
	require.NoError(t, err)

	_, err = other.Unseal(PurposeExport, sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = k.Unseal(PurposeSelfCheck, sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	tampered := append([]byte{}, sealed...)
	tampered[len(tampered)-1] ^= 0xFF
	_, err = k.Unseal(PurposeExport, tampered)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = k.Unseal(PurposeExport, []byte("short"))
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	var nilKey *Key
	_, err = nilKey.Seal(PurposeExport, []byte("x"))
	assert.ErrorIs(t, err, ErrEncryptionFailed)
}

func TestError_IsMatchesCode(t *testing.T) {
	err := newError(CodeExecuteFailed, "save", assert.AnError)
	assert.ErrorIs(t, err, ErrExecuteFailed)
	assert.NotErrorIs(t, err, ErrPrepareFailed)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "catalog: save: EXECUTE_FAILED: "+assert.AnError.Error(), err.Error())
}
