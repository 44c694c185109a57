package cryptox

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/remindsafe/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedKeySource struct {
	key []byte
	err error
}

func (f *fixedKeySource) MasterKey(ctx context.Context, userID string) ([]byte, error) {
	return f.key, f.err
}

func newTestBox(t *testing.T) *AESBox {
	t.Helper()
	return NewAESBox(&fixedKeySource{key: DeriveMasterKey([]byte("passphrase"), []byte("salt-salt-salt-salt"))})
}

func TestAESBox_Roundtrip(t *testing.T) {
	box := newTestBox(t)
	ctx := context.Background()

	ct, err := box.Encrypt(ctx, "u1", "r1", "buy milk")
	require.NoError(t, err)
	require.NotEmpty(t, ct)

	pt, err := box.Decrypt(ctx, "u1", "r1", ct)
	require.NoError(t, err)
	assert.Equal(t, "buy milk", pt)
}

func TestAESBox_CiphertextBoundToRecord(t *testing.T) {
	box := newTestBox(t)
	ctx := context.Background()

	ct, err := box.Encrypt(ctx, "u1", "r1", "buy milk")
	require.NoError(t, err)

	_, err = box.Decrypt(ctx, "u1", "r2", ct)
	assert.Error(t, err, "subkey must differ per record")

	_, err = box.Decrypt(ctx, "u2", "r1", ct)
	assert.Error(t, err, "subkey must differ per user")
}

func TestAESBox_TamperedCiphertextFails(t *testing.T) {
	box := newTestBox(t)
	ctx := context.Background()

	ct, err := box.Encrypt(ctx, "u1", "r1", "buy milk")
	require.NoError(t, err)

	tampered := []byte(ct)
	tampered[len(tampered)-5] ^= 1
	_, err = box.Decrypt(ctx, "u1", "r1", string(tampered))
	assert.Error(t, err)
}

func TestAESBox_InvalidMasterKey(t *testing.T) {
	box := NewAESBox(&fixedKeySource{key: []byte("short")})

	_, err := box.Encrypt(context.Background(), "u1", "r1", "x")
	assert.ErrorIs(t, err, common.ErrInvalidKeyMaterial)
}

func TestAESBox_KeySourceErrorPropagates(t *testing.T) {
	box := NewAESBox(&fixedKeySource{err: common.ErrKeyNotUnlocked})

	_, err := box.Encrypt(context.Background(), "u1", "r1", "x")
	assert.ErrorIs(t, err, common.ErrKeyNotUnlocked)
}

func TestDeriveMasterKey_Deterministic(t *testing.T) {
	a := DeriveMasterKey([]byte("p"), []byte("s"))
	b := DeriveMasterKey([]byte("p"), []byte("s"))
	c := DeriveMasterKey([]byte("p"), []byte("other"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}
