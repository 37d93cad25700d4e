package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payloads carry addresses as 0x-hex (or bech32) strings and amounts as
// base-10 strings in the token's smallest unit.

type InitializePayload struct {
	InputToken  string `json:"inputToken"`
	OutputToken string `json:"outputToken"`
	Vault       string `json:"vault"`
}

type SwapRatePayload struct {
	InputAmount  string `json:"inputAmount"`
	OutputAmount string `json:"outputAmount"`
}

type AddressPayload struct {
	Address string `json:"address"`
}

type SwapPayload struct {
	InputAmount string `json:"inputAmount"`
}

type ClaimTokenPayload struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type AmountPayload struct {
	Amount string `json:"amount"`
}

type RolePayload struct {
	Role    string `json:"role"`
	Account string `json:"account"`
}

type TransferValuePayload struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type TokenTransferPayload struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type TokenApprovePayload struct {
	Token   string `json:"token"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type TokenMintPayload struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type TokenAuthorityPayload struct {
	Token     string `json:"token"`
	Authority string `json:"authority"`
}

// EncodePayload marshals a payload struct to JSON.
func EncodePayload(payload interface{}) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

// DecodePayload unmarshals data into out.
func DecodePayload(data []byte, out interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("decode payload: empty data")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
