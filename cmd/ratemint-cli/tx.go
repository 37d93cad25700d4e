package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"ratemint/core/types"
	"ratemint/crypto"
)

const envKeystore = "RATEMINT_KEYSTORE"

// units carries the decimals used to scale the amounts of one command.
type units struct {
	in  int32
	out int32
}

type txCommand struct {
	usage  string
	nargs  int
	txType types.TxType
	build  func(args []string, u units) (interface{}, error)
}

var txCommands = map[string]txCommand{
	"initialize": {usage: "<input_token> <output_token> <vault>", nargs: 3, txType: types.TxTypeInitialize,
		build: func(a []string, _ units) (interface{}, error) {
			addrs, err := parseAddresses(a...)
			if err != nil {
				return nil, err
			}
			return types.InitializePayload{InputToken: addrs[0], OutputToken: addrs[1], Vault: addrs[2]}, nil
		}},
	"set-rate": {usage: "[--decimals n] [--out-decimals n] <input_amount> <output_amount>", nargs: 2, txType: types.TxTypeSetSwapRate,
		build: func(a []string, u units) (interface{}, error) {
			in, err := toBaseUnits(a[0], u.in)
			if err != nil {
				return nil, err
			}
			out, err := toBaseUnits(a[1], u.out)
			if err != nil {
				return nil, err
			}
			return types.SwapRatePayload{InputAmount: in, OutputAmount: out}, nil
		}},
	"set-input-token":   addressCommand("<token>", types.TxTypeSetInputToken),
	"set-output-token":  addressCommand("<token>", types.TxTypeSetOutputToken),
	"set-vault":         addressCommand("<vault>", types.TxTypeSetVault),
	"authorize-upgrade": addressCommand("<implementation>", types.TxTypeAuthorizeUpgrade),
	"swap": {usage: "[--decimals n] <input_amount>", nargs: 1, txType: types.TxTypeSwap,
		build: func(a []string, u units) (interface{}, error) {
			amount, err := toBaseUnits(a[0], u.in)
			if err != nil {
				return nil, err
			}
			return types.SwapPayload{InputAmount: amount}, nil
		}},
	"claim-token": {usage: "[--decimals n] <token> <amount>", nargs: 2, txType: types.TxTypeClaimToken,
		build: func(a []string, u units) (interface{}, error) {
			addrs, err := parseAddresses(a[0])
			if err != nil {
				return nil, err
			}
			amount, err := toBaseUnits(a[1], u.in)
			if err != nil {
				return nil, err
			}
			return types.ClaimTokenPayload{Token: addrs[0], Amount: amount}, nil
		}},
	"claim-value": {usage: "[--decimals n] <amount>", nargs: 1, txType: types.TxTypeClaimValue,
		build: func(a []string, u units) (interface{}, error) {
			amount, err := toBaseUnits(a[0], u.in)
			if err != nil {
				return nil, err
			}
			return types.AmountPayload{Amount: amount}, nil
		}},
	"grant-role":    roleCommand(types.TxTypeGrantRole),
	"revoke-role":   roleCommand(types.TxTypeRevokeRole),
	"renounce-role": roleCommand(types.TxTypeRenounceRole),
	"transfer-value": {usage: "[--decimals n] <to> <amount>", nargs: 2, txType: types.TxTypeTransferValue,
		build: func(a []string, u units) (interface{}, error) {
			addrs, err := parseAddresses(a[0])
			if err != nil {
				return nil, err
			}
			amount, err := toBaseUnits(a[1], u.in)
			if err != nil {
				return nil, err
			}
			return types.TransferValuePayload{To: addrs[0], Amount: amount}, nil
		}},
	"token-transfer": {usage: "[--decimals n] <token> <to> <amount>", nargs: 3, txType: types.TxTypeTokenTransfer,
		build: func(a []string, u units) (interface{}, error) {
			addrs, err := parseAddresses(a[0], a[1])
			if err != nil {
				return nil, err
			}
			amount, err := toBaseUnits(a[2], u.in)
			if err != nil {
				return nil, err
			}
			return types.TokenTransferPayload{Token: addrs[0], To: addrs[1], Amount: amount}, nil
		}},
	"token-approve": {usage: "[--decimals n] <token> <spender> <amount>", nargs: 3, txType: types.TxTypeTokenApprove,
		build: func(a []string, u units) (interface{}, error) {
			addrs, err := parseAddresses(a[0], a[1])
			if err != nil {
				return nil, err
			}
			amount, err := toBaseUnits(a[2], u.in)
			if err != nil {
				return nil, err
			}
			return types.TokenApprovePayload{Token: addrs[0], Spender: addrs[1], Amount: amount}, nil
		}},
	"token-mint": {usage: "[--decimals n] <token> <to> <amount>", nargs: 3, txType: types.TxTypeTokenMint,
		build: func(a []string, u units) (interface{}, error) {
			addrs, err := parseAddresses(a[0], a[1])
			if err != nil {
				return nil, err
			}
			amount, err := toBaseUnits(a[2], u.in)
			if err != nil {
				return nil, err
			}
			return types.TokenMintPayload{Token: addrs[0], To: addrs[1], Amount: amount}, nil
		}},
	"token-set-authority": {usage: "<token> <authority>", nargs: 2, txType: types.TxTypeTokenSetAuthority,
		build: func(a []string, _ units) (interface{}, error) {
			addrs, err := parseAddresses(a...)
			if err != nil {
				return nil, err
			}
			return types.TokenAuthorityPayload{Token: addrs[0], Authority: addrs[1]}, nil
		}},
}

func addressCommand(usage string, txType types.TxType) txCommand {
	return txCommand{usage: usage, nargs: 1, txType: txType,
		build: func(a []string, _ units) (interface{}, error) {
			addrs, err := parseAddresses(a[0])
			if err != nil {
				return nil, err
			}
			return types.AddressPayload{Address: addrs[0]}, nil
		}}
}

func roleCommand(txType types.TxType) txCommand {
	return txCommand{usage: "<ADMIN|UPGRADER> <account>", nargs: 2, txType: txType,
		build: func(a []string, _ units) (interface{}, error) {
			addrs, err := parseAddresses(a[1])
			if err != nil {
				return nil, err
			}
			return types.RolePayload{Role: strings.ToUpper(strings.TrimSpace(a[0])), Account: addrs[0]}, nil
		}}
}

func parseAddresses(values ...string) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		addr, err := crypto.ParseAddress(v)
		if err != nil {
			return nil, fmt.Errorf("address %q: %w", v, err)
		}
		out[i] = addr.Hex()
	}
	return out, nil
}

// runTx builds, signs and submits one transaction, then prints the receipt.
func (c *cli) runTx(name string, tc txCommand, args []string) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	keyFile := fs.String("key", os.Getenv(envKeystore), "Keystore file of the signer")
	decimals := fs.Int("decimals", int(defaultDecimals), "Decimals used to scale amounts (0 passes base units)")
	outDecimals := fs.Int("out-decimals", -1, "Decimals for the output amount of set-rate (defaults to --decimals)")
	nonce := fs.Int64("nonce", -1, "Explicit nonce (fetched from the node when negative)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	positional := fs.Args()
	if len(positional) != tc.nargs {
		fmt.Fprintf(c.stderr, "Usage: ratemint-cli %s --key <keystore_file> %s\n", name, tc.usage)
		return 1
	}

	u := units{in: int32(*decimals), out: int32(*decimals)}
	if *outDecimals >= 0 {
		u.out = int32(*outDecimals)
	}
	payload, err := tc.build(positional, u)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	key, err := c.loadKey(*keyFile)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	tx, err := c.buildTransaction(key, tc.txType, *nonce, payload)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}

	result, err := c.client.call("exchange_sendTransaction", tx)
	if err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) && len(rpcErr.Data) > 0 && rpcErr.Data[0] == '{' {
			fmt.Fprintf(c.stderr, "Transaction reverted: %s\n", rpcErr.Message)
			c.printJSON(rpcErr.Data)
			return 1
		}
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	c.printJSON(result)
	return 0
}

func (c *cli) buildTransaction(key *crypto.PrivateKey, txType types.TxType, nonce int64, payload interface{}) (*types.Transaction, error) {
	var chainID uint64
	if err := c.client.callInto(&chainID, "chain_id"); err != nil {
		return nil, fmt.Errorf("fetching chain id: %w", err)
	}
	var next uint64
	if nonce >= 0 {
		next = uint64(nonce)
	} else if err := c.client.callInto(&next, "account_getNonce", key.Address().Hex()); err != nil {
		return nil, fmt.Errorf("fetching nonce: %w", err)
	}
	tx, err := types.NewTransaction(chainID, txType, next, payload)
	if err != nil {
		return nil, err
	}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return tx, nil
}

