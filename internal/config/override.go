package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/spf13/viper"
)

// ReadOverride returns the contract address persisted in path. An empty path or a
// missing file yields "".
func ReadOverride(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read override file %s: %w", path, err)
	}
	return v.GetString(overrideKey), nil
}

// SaveOverride persists address as the contract override. The address is stored in
// checksum form.
func SaveOverride(path, address string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no override file configured")
	}
	addr, err := wallet.ValidateAddress(address)
	if err != nil {
		return "", err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set(overrideKey, addr.Hex())
	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write override file %s: %w", path, err)
	}
	return addr.Hex(), nil
}

// ClearOverride removes the override file. A missing file is not an error.
func ClearOverride(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove override file %s: %w", path, err)
	}
	return nil
}
