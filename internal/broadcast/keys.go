package broadcast

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cosmos/cosmos-sdk/codec"
	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	"github.com/cosmos/cosmos-sdk/types/bech32"

	"github.com/manifest-network/ibcsend/internal/config"
)

const keyringAppName = "ibcsend"

// KeyDir returns the keyring directory of a chain, defaulting to $HOME/.ibcsend/keys/<chain id>.
func KeyDir(cfg config.ChainConfig) (string, error) {
	if cfg.KeyDir != "" {
		return cfg.KeyDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".ibcsend", "keys", cfg.ID), nil
}

// OpenKeyring opens the keyring configured for a chain.
func OpenKeyring(cfg config.ChainConfig, cdc codec.Codec) (keyring.Keyring, error) {
	dir, err := KeyDir(cfg)
	if err != nil {
		return nil, err
	}
	backend := cfg.KeyStoreType
	if backend == "" {
		backend = config.DefaultKeyStore
	}

	kr, err := keyring.New(keyringAppName, backend, dir, os.Stdin, cdc)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s keyring at %s: %w", backend, dir, err)
	}
	return kr, nil
}

// KeyAddress returns the bech32 address of the configured key of a chain, encoded with the
// chain's account prefix.
func KeyAddress(cfg config.ChainConfig) (string, error) {
	kr, err := OpenKeyring(cfg, makeEncodingConfig().Codec)
	if err != nil {
		return "", err
	}
	return keyAddress(kr, cfg.KeyName, cfg.AccountPrefix)
}

func keyAddress(kr keyring.Keyring, keyName, prefix string) (string, error) {
	record, err := kr.Key(keyName)
	if err != nil {
		return "", fmt.Errorf("failed to find key '%s': %w", keyName, err)
	}
	addr, err := record.GetAddress()
	if err != nil {
		return "", fmt.Errorf("failed to read address of key '%s': %w", keyName, err)
	}
	return bech32.ConvertAndEncode(prefix, addr)
}
