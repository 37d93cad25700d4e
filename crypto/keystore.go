package crypto

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
)

// KeystoreStrength selects the scrypt cost used when encrypting keys.
type KeystoreStrength int

const (
	// KeystoreStandard matches the cost used by Ethereum wallets.
	KeystoreStandard KeystoreStrength = iota
	// KeystoreLight trades security for speed; intended for tests and local
	// development keys.
	KeystoreLight
)

func (s KeystoreStrength) params() (int, int) {
	if s == KeystoreLight {
		return keystore.LightScryptN, keystore.LightScryptP
	}
	return keystore.StandardScryptN, keystore.StandardScryptP
}

// SaveToKeystore writes the key to an Ethereum v3 keystore file at path. The
// parent directory is created with 0700 permissions when missing and the file
// is replaced atomically.
func SaveToKeystore(path string, key *PrivateKey, passphrase string, strength KeystoreStrength) error {
	if key == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp(dir, "keystore-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	scryptN, scryptP := strength.params()
	ks := keystore.NewKeyStore(tmpDir, scryptN, scryptP)
	account, err := ks.ImportECDSA(key.PrivateKey, passphrase)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(account.URL.Path, path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// LoadFromKeystore decrypts an Ethereum v3 keystore file using the supplied passphrase.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}

	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, err
	}

	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}
