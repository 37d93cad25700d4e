package main

import (
	"flag"
	"fmt"
	"sort"
	"strings"

	"ratemint/crypto"
)

type queryCommand struct {
	usage  string
	method string
	nargs  int
	// params converts positional args; nil passes them through unchanged.
	params func(args []string, decimals int32) ([]interface{}, error)
}

var queryCommands = map[string]queryCommand{
	"chain-id":       {usage: "", method: "chain_id"},
	"rate":           {usage: "[--decimals n] <input_amount>", method: "exchange_getRate", nargs: 1, params: amountArgs(0)},
	"rates":          {usage: "", method: "exchange_getRates"},
	"config":         {usage: "", method: "exchange_getConfig"},
	"implementation": {usage: "", method: "exchange_getImplementation"},
	"has-role":       {usage: "<ADMIN|UPGRADER> <account>", method: "exchange_hasRole", nargs: 2, params: addressArgs(1)},
	"role-members":   {usage: "<ADMIN|UPGRADER>", method: "exchange_getRoleMembers", nargs: 1},
	"token-balance":  {usage: "<token> <holder>", method: "token_balanceOf", nargs: 2, params: addressArgs(0, 1)},
	"token-allowance": {usage: "<token> <owner> <spender>", method: "token_allowance", nargs: 3,
		params: addressArgs(0, 1, 2)},
	"token-info": {usage: "<token>", method: "token_info", nargs: 1, params: addressArgs(0)},
	"balance":    {usage: "<address>", method: "account_getBalance", nargs: 1, params: addressArgs(0)},
	"nonce":      {usage: "<address>", method: "account_getNonce", nargs: 1, params: addressArgs(0)},
	"events":     {usage: "[--type t] [--attr name=value] [--after id] [--limit n]", method: "events_list"},
}

func (c *cli) runQuery(name string, q queryCommand, args []string) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	decimals := fs.Int("decimals", int(defaultDecimals), "Decimals used to scale amounts (0 passes base units)")
	var filter eventsFilter
	if q.method == "events_list" {
		fs.StringVar(&filter.Type, "type", "", "Only events of this type")
		fs.StringVar(&filter.attr, "attr", "", "Only events with attribute name=value")
		fs.Uint64Var(&filter.AfterID, "after", 0, "Only events with an id greater than this")
		fs.IntVar(&filter.Limit, "limit", 0, "Maximum number of events")
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	positional := fs.Args()
	if len(positional) != q.nargs {
		fmt.Fprintf(c.stderr, "Usage: ratemint-cli %s %s\n", name, q.usage)
		return 1
	}

	var params []interface{}
	switch {
	case q.method == "events_list":
		p, err := filter.params()
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
		params = p
	case q.params != nil:
		p, err := q.params(positional, int32(*decimals))
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
		params = p
	default:
		for _, arg := range positional {
			params = append(params, arg)
		}
	}

	result, err := c.client.call(q.method, params...)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	c.printJSON(result)
	return 0
}

type eventsFilter struct {
	Type      string `json:"type,omitempty"`
	AttrName  string `json:"attrName,omitempty"`
	AttrValue string `json:"attrValue,omitempty"`
	AfterID   uint64 `json:"afterId,omitempty"`
	Limit     int    `json:"limit,omitempty"`

	attr string
}

func (f *eventsFilter) params() ([]interface{}, error) {
	if f.attr != "" {
		name, value, ok := strings.Cut(f.attr, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("--attr must be name=value")
		}
		f.AttrName, f.AttrValue = strings.TrimSpace(name), value
	}
	return []interface{}{f}, nil
}

// addressArgs normalises the listed positions to checksummed hex and passes
// the rest through.
func addressArgs(positions ...int) func([]string, int32) ([]interface{}, error) {
	return func(args []string, _ int32) ([]interface{}, error) {
		out := make([]interface{}, len(args))
		for i, arg := range args {
			out[i] = arg
		}
		for _, pos := range positions {
			addr, err := crypto.ParseAddress(args[pos])
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", pos+1, err)
			}
			out[pos] = addr.Hex()
		}
		return out, nil
	}
}

func amountArgs(positions ...int) func([]string, int32) ([]interface{}, error) {
	return func(args []string, decimals int32) ([]interface{}, error) {
		out := make([]interface{}, len(args))
		for i, arg := range args {
			out[i] = arg
		}
		for _, pos := range positions {
			amount, err := toBaseUnits(args[pos], decimals)
			if err != nil {
				return nil, err
			}
			out[pos] = amount
		}
		return out, nil
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
