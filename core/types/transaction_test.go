package types

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestTransactionSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	expected := crypto.PubkeyToAddress(key.PublicKey)

	tx, err := NewTransaction(7701, TxTypeSwap, 3, &SwapPayload{InputAmount: "5000"})
	require.NoError(t, err)
	require.NoError(t, tx.Sign(key))

	from, err := tx.From()
	require.NoError(t, err)
	require.Equal(t, expected, from)

	raw, err := json.Marshal(tx)
	require.NoError(t, err)
	var decoded Transaction
	require.NoError(t, json.Unmarshal(raw, &decoded))
	recovered, err := decoded.From()
	require.NoError(t, err)
	require.Equal(t, expected, recovered)

	var payload SwapPayload
	require.NoError(t, decoded.DecodePayload(&payload))
	require.Equal(t, "5000", payload.InputAmount)
}

func TestTransactionTamperChangesSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	tx, err := NewTransaction(1, TxTypeClaimValue, 0, &AmountPayload{Amount: "1"})
	require.NoError(t, err)
	require.NoError(t, tx.Sign(key))

	tampered := &Transaction{ChainID: tx.ChainID, Type: tx.Type, Nonce: tx.Nonce + 1, Data: tx.Data, R: tx.R, S: tx.S, V: tx.V}
	from, err := tampered.From()
	if err == nil {
		require.NotEqual(t, signer, from)
	}
}

func TestTransactionUnsigned(t *testing.T) {
	tx := &Transaction{ChainID: 1, Type: TxTypeSwap}
	_, err := tx.From()
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecodePayloadRejectsUnknownFields(t *testing.T) {
	var payload SwapPayload
	err := DecodePayload([]byte(`{"inputAmount":"1","extra":true}`), &payload)
	require.Error(t, err)
	require.Error(t, DecodePayload(nil, &payload))
}

func TestTxTypeNames(t *testing.T) {
	require.Equal(t, "swap", TxTypeSwap.String())
	require.True(t, TxTypeTokenMint.Known())
	require.False(t, TxType(0xff).Known())
	require.Equal(t, "unknown(0xff)", TxType(0xff).String())
}
