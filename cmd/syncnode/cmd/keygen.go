package cmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/spf13/cobra"
)

var (
	flagKeyOut      string
	flagAuthorities int
	flagConfigOut   string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a node identity key and optionally authority keys",
	RunE:  runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&flagKeyOut, "out", "o", "node.key", "file the node identity key is written to")
	keygenCmd.Flags().IntVar(&flagAuthorities, "authorities", 0, "number of ed25519 authority key pairs to print")
	keygenCmd.Flags().StringVar(&flagConfigOut, "config-out", "", "YAML file the node key path and authority public keys are written to, for use with --config")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return fmt.Errorf("could not generate node key: %w", err)
	}
	if err := writeNodeKey(flagKeyOut, priv); err != nil {
		return err
	}
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("could not derive peer id: %w", err)
	}
	log.Info().Str("file", flagKeyOut).Stringer("peer_id", id).Msg("node key written")

	authorities := make([]ed25519.PublicKey, 0, flagAuthorities)
	for i := 0; i < flagAuthorities; i++ {
		pub, sk, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("could not generate authority key: %w", err)
		}
		authorities = append(authorities, pub)
		fmt.Fprintf(cmd.OutOrStdout(), "authority %d public=%s private=%s\n", i, hex.EncodeToString(pub), hex.EncodeToString(sk))
	}

	if flagConfigOut == "" {
		return nil
	}
	if err := writeAuthorityConfig(flagConfigOut, flagKeyOut, authorities); err != nil {
		return err
	}
	log.Info().Str("file", flagConfigOut).Int("authorities", len(authorities)).Msg("config written")
	return nil
}
