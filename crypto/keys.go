package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part of bech32 encoded addresses.
const AddressPrefix = "rmt"

// ErrInvalidAddress is returned when a string is neither a 0x-hex nor a
// bech32 address.
var ErrInvalidAddress = errors.New("crypto: invalid address")

// EncodeAddress renders addr in bech32 form with the rmt prefix.
func EncodeAddress(addr common.Address) string {
	conv, err := bech32.ConvertBits(addr.Bytes(), 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// DecodeAddress parses a bech32 address carrying the rmt prefix.
func DecodeAddress(addrStr string) (common.Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: invalid bech32 string: %v", ErrInvalidAddress, err)
	}
	if prefix != AddressPrefix {
		return common.Address{}, fmt.Errorf("%w: unexpected prefix %q", ErrInvalidAddress, prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: error converting bits: %v", ErrInvalidAddress, err)
	}
	if len(conv) != common.AddressLength {
		return common.Address{}, fmt.Errorf("%w: address must be 20 bytes, got %d", ErrInvalidAddress, len(conv))
	}
	return common.BytesToAddress(conv), nil
}

// ParseAddress accepts either a 0x-prefixed hex address or the bech32 form.
func ParseAddress(value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		if !common.IsHexAddress(trimmed) {
			return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, value)
		}
		return common.HexToAddress(trimmed), nil
	}
	return DecodeAddress(strings.ToLower(trimmed))
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Address returns the account controlled by the key.
func (k *PrivateKey) Address() common.Address {
	return k.PubKey().Address()
}

func (k *PublicKey) Address() common.Address {
	return crypto.PubkeyToAddress(*k.PublicKey)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromHex decodes a hex encoded key, with or without 0x prefix.
func PrivateKeyFromHex(value string) (*PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(value), "0x"), "0X")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode private key: %w", err)
	}
	return PrivateKeyFromBytes(raw)
}
