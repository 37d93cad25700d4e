package types

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeInitialize        TxType = 0x01
	TxTypeSetSwapRate       TxType = 0x02
	TxTypeSetInputToken     TxType = 0x03
	TxTypeSetOutputToken    TxType = 0x04
	TxTypeSetVault          TxType = 0x05
	TxTypeSwap              TxType = 0x06
	TxTypeClaimToken        TxType = 0x07
	TxTypeClaimValue        TxType = 0x08
	TxTypeGrantRole         TxType = 0x09
	TxTypeRevokeRole        TxType = 0x0a
	TxTypeRenounceRole      TxType = 0x0b
	TxTypeAuthorizeUpgrade  TxType = 0x0c
	TxTypeTransferValue     TxType = 0x10
	TxTypeTokenTransfer     TxType = 0x11
	TxTypeTokenApprove      TxType = 0x12
	TxTypeTokenMint         TxType = 0x13
	TxTypeTokenSetAuthority TxType = 0x14
)

var txTypeNames = map[TxType]string{
	TxTypeInitialize:        "initialize",
	TxTypeSetSwapRate:       "setSwapRate",
	TxTypeSetInputToken:     "setInputTokenAddress",
	TxTypeSetOutputToken:    "setOutputTokenAddress",
	TxTypeSetVault:          "setVaultAddress",
	TxTypeSwap:              "swap",
	TxTypeClaimToken:        "claimToken",
	TxTypeClaimValue:        "claimValue",
	TxTypeGrantRole:         "grantRole",
	TxTypeRevokeRole:        "revokeRole",
	TxTypeRenounceRole:      "renounceRole",
	TxTypeAuthorizeUpgrade:  "authorizeUpgrade",
	TxTypeTransferValue:     "transferValue",
	TxTypeTokenTransfer:     "tokenTransfer",
	TxTypeTokenApprove:      "tokenApprove",
	TxTypeTokenMint:         "tokenMint",
	TxTypeTokenSetAuthority: "tokenSetMintAuthority",
}

// String returns the operation name carried by the type.
func (t TxType) String() string {
	if name, ok := txTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// Known reports whether the type maps to an entry point.
func (t TxType) Known() bool {
	_, ok := txTypeNames[t]
	return ok
}

// ErrInvalidSignature is returned when the sender cannot be recovered.
var ErrInvalidSignature = errors.New("transaction: invalid signature")

// Transaction is a signed request to run one entry point as the signer.
type Transaction struct {
	ChainID uint64 `json:"chainId"`
	Type    TxType `json:"type"`
	Nonce   uint64 `json:"nonce"`
	Data    []byte `json:"data"`

	R, S, V *big.Int `json:"-"`

	from *common.Address
}

type txJSON struct {
	ChainID uint64 `json:"chainId"`
	Type    TxType `json:"type"`
	Nonce   uint64 `json:"nonce"`
	Data    []byte `json:"data"`
	R       string `json:"r"`
	S       string `json:"s"`
	V       string `json:"v"`
}

// MarshalJSON encodes signature components as 0x-prefixed hex.
func (tx *Transaction) MarshalJSON() ([]byte, error) {
	enc := txJSON{ChainID: tx.ChainID, Type: tx.Type, Nonce: tx.Nonce, Data: tx.Data}
	if tx.R != nil {
		enc.R = "0x" + tx.R.Text(16)
	}
	if tx.S != nil {
		enc.S = "0x" + tx.S.Text(16)
	}
	if tx.V != nil {
		enc.V = "0x" + tx.V.Text(16)
	}
	return json.Marshal(enc)
}

// UnmarshalJSON decodes the representation produced by MarshalJSON.
func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var dec txJSON
	if err := json.Unmarshal(data, &dec); err != nil {
		return err
	}
	tx.ChainID = dec.ChainID
	tx.Type = dec.Type
	tx.Nonce = dec.Nonce
	tx.Data = dec.Data
	tx.from = nil
	var err error
	if tx.R, err = parseSigComponent("r", dec.R); err != nil {
		return err
	}
	if tx.S, err = parseSigComponent("s", dec.S); err != nil {
		return err
	}
	if tx.V, err = parseSigComponent("v", dec.V); err != nil {
		return err
	}
	return nil
}

func parseSigComponent(name, raw string) (*big.Int, error) {
	if raw == "" {
		return nil, nil
	}
	value, ok := new(big.Int).SetString(raw, 0)
	if !ok {
		return nil, fmt.Errorf("transaction: invalid %s component", name)
	}
	return value, nil
}

// Hash is keccak256 over the RLP encoding of the signed fields.
func (tx *Transaction) Hash() (common.Hash, error) {
	encoded, err := rlp.EncodeToBytes([]interface{}{tx.ChainID, uint64(tx.Type), tx.Nonce, tx.Data})
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}

// Sign signs the transaction with the supplied key.
func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash.Bytes(), privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the signer address.
func (tx *Transaction) From() (common.Address, error) {
	if tx.from != nil {
		return *tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return common.Address{}, ErrInvalidSignature
	}
	if len(tx.R.Bytes()) > 32 || len(tx.S.Bytes()) > 32 || !tx.V.IsUint64() {
		return common.Address{}, ErrInvalidSignature
	}
	v := tx.V.Uint64()
	if v != 27 && v != 28 {
		return common.Address{}, ErrInvalidSignature
	}
	hash, err := tx.Hash()
	if err != nil {
		return common.Address{}, err
	}
	sig := make([]byte, 65)
	copy(sig[32-len(tx.R.Bytes()):32], tx.R.Bytes())
	copy(sig[64-len(tx.S.Bytes()):64], tx.S.Bytes())
	sig[64] = byte(v - 27)
	pubKey, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	from := crypto.PubkeyToAddress(*pubKey)
	tx.from = &from
	return from, nil
}

// NewTransaction encodes payload as the transaction data.
func NewTransaction(chainID uint64, txType TxType, nonce uint64, payload interface{}) (*Transaction, error) {
	data, err := EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	return &Transaction{ChainID: chainID, Type: txType, Nonce: nonce, Data: data}, nil
}

// DecodePayload unmarshals the transaction data into out, rejecting unknown fields.
func (tx *Transaction) DecodePayload(out interface{}) error {
	return DecodePayload(tx.Data, out)
}
