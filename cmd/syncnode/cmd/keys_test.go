package cmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestParseAuthorities(t *testing.T) {
	pub1, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pub2, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	keys, err := parseAuthorities([]string{hex.EncodeToString(pub1), " 0x" + hex.EncodeToString(pub2)})
	require.NoError(t, err)
	assert.Equal(t, []ed25519.PublicKey{pub1, pub2}, keys)

	_, err = parseAuthorities([]string{"not hex"})
	assert.Error(t, err)

	_, err = parseAuthorities([]string{hex.EncodeToString(pub1[:16])})
	assert.Error(t, err)
}

func TestNodeKey(t *testing.T) {
	key, err := loadNodeKey("")
	require.NoError(t, err)
	assert.Nil(t, key)

	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "node.key")
	require.NoError(t, writeNodeKey(path, priv))

	loaded, err := loadNodeKey(path)
	require.NoError(t, err)
	assert.True(t, priv.Equals(loaded))

	_, err = loadNodeKey(filepath.Join(t.TempDir(), "missing.key"))
	assert.Error(t, err)
}

// The config written by keygen is read back by the run command.
func TestAuthorityConfig(t *testing.T) {
	var authorities []ed25519.PublicKey
	for i := 0; i < 4; i++ {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		authorities = append(authorities, pub)
	}
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, writeAuthorityConfig(path, "node.key", authorities))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var written authorityConfig
	require.NoError(t, yaml.Unmarshal(raw, &written))
	assert.Equal(t, 3, written.Threshold)

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	settings := validSettings()
	delete(settings, "authorities")
	for key, value := range settings {
		v.Set(key, value)
	}

	cfg, err := loadNodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "node.key", cfg.NodeKey)
	assert.Equal(t, 3, cfg.threshold())

	keys, err := parseAuthorities(cfg.Authorities)
	require.NoError(t, err)
	assert.Equal(t, authorities, keys)
}
