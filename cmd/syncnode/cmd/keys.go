package cmd

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// parseAuthorities decodes hex encoded ed25519 public keys. The position of a
// key in the list is its authority index.
func parseAuthorities(encoded []string) ([]ed25519.PublicKey, error) {
	keys := make([]ed25519.PublicKey, 0, len(encoded))
	for i, s := range encoded {
		raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
		if err != nil {
			return nil, errors.Wrapf(err, "authority %d is not hex encoded", i)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("authority %d has invalid key length %d", i, len(raw))
		}
		keys = append(keys, ed25519.PublicKey(raw))
	}
	return keys, nil
}

// loadNodeKey reads a libp2p private key written by the keygen command. An
// empty path yields a nil key, so that a fresh identity is generated.
func loadNodeKey(path string) (crypto.PrivKey, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read node key")
	}
	key, err := crypto.UnmarshalPrivateKey(raw)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode node key")
	}
	return key, nil
}

func writeNodeKey(path string, key crypto.PrivKey) error {
	raw, err := crypto.MarshalPrivateKey(key)
	if err != nil {
		return errors.Wrap(err, "could not encode node key")
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return errors.Wrap(err, "could not write node key")
	}
	return nil
}

// authorityConfig is the part of the run configuration produced by keygen.
type authorityConfig struct {
	NodeKey     string   `yaml:"node-key"`
	Authorities []string `yaml:"authorities,flow"`
	Threshold   int      `yaml:"threshold"`
}

// writeAuthorityConfig writes a YAML config file naming the node key and
// the authority public keys, with a two thirds majority threshold.
func writeAuthorityConfig(path string, nodeKeyPath string, authorities []ed25519.PublicKey) error {
	cfg := authorityConfig{
		NodeKey:     nodeKeyPath,
		Authorities: make([]string, 0, len(authorities)),
		Threshold:   len(authorities)*2/3 + 1,
	}
	for _, pub := range authorities {
		cfg.Authorities = append(cfg.Authorities, hex.EncodeToString(pub))
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "could not encode config")
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errors.Wrap(err, "could not write config")
	}
	return nil
}
