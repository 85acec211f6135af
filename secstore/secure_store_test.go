package secstore

import (
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestSecStore_Sign(t *testing.T) {
	secStore := NewSecStore()
	key, err := GenerateKey()
	require.NoError(t, err)
	require.NoError(t, secStore.AddKey(key))

	id := secStore.GetPeerId()
	require.NotEmpty(t, id)
	require.NotEmpty(t, secStore.GetPubKey())

	sig := secStore.Sign([]byte{0x1, 0x2})
	require.True(t, VerifySignature(id, []byte{0x1, 0x2}, sig))
	require.False(t, VerifySignature(id, []byte{0x1, 0x3}, sig))

	other := NewSecStore()
	otherKey, _ := GenerateKey()
	require.NoError(t, other.AddKey(otherKey))
	require.False(t, VerifySignature(other.GetPeerId(), []byte{0x1, 0x2}, sig))
}

func TestSecStore_NoKey(t *testing.T) {
	secStore := NewSecStore()
	require.Empty(t, secStore.GetPeerId())
	require.Nil(t, secStore.Sign([]byte{0x1}))
	require.Error(t, secStore.AddKey([]byte{0x1, 0x2}))
}

func TestLoadOrCreateKey(t *testing.T) {
	dir, err := ioutil.TempDir("", "secstore")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "keystore", "nodekey")

	key, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	loaded, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	require.Equal(t, key, loaded)

	require.NoError(t, ioutil.WriteFile(path, []byte("zz"), 0600))
	_, err = LoadOrCreateKey(path)
	require.Error(t, err)
}
