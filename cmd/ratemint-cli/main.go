package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"ratemint/cmd/internal/passphrase"
	"ratemint/crypto"
)

type cli struct {
	client     *rpcClient
	stdout     io.Writer
	stderr     io.Writer
	passphrase func() (string, error)
	strength   crypto.KeystoreStrength
}

func main() {
	source := passphrase.NewSource(passphrase.EnvKeystorePass, "")
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, source.Get))
}

func run(args []string, stdout, stderr io.Writer, pass func() (string, error)) int {
	c := &cli{
		client:     newRPCClient(defaultRPCEndpoint(), os.Getenv(envRPCToken)),
		stdout:     stdout,
		stderr:     stderr,
		passphrase: pass,
		strength:   crypto.KeystoreStandard,
	}
	args, err := c.applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) == 0 {
		c.printUsage()
		return 1
	}

	command, rest := strings.ToLower(args[0]), args[1:]
	if command == "help" || command == "-h" || command == "--help" {
		c.printUsage()
		return 0
	}
	if command == "keygen" {
		return c.runKeygen(rest)
	}
	if command == "address" {
		return c.runAddress(rest)
	}
	if q, ok := queryCommands[command]; ok {
		return c.runQuery(command, q, rest)
	}
	if tc, ok := txCommands[command]; ok {
		return c.runTx(command, tc, rest)
	}
	fmt.Fprintf(stderr, "Unknown command %q\n", args[0])
	c.printUsage()
	return 1
}

// applyGlobalFlags strips --rpc and --token from args wherever they appear.
func (c *cli) applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc" || arg == "--token":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", arg)
			}
			if arg == "--rpc" {
				c.client.endpoint = strings.TrimSpace(args[i+1])
			} else {
				c.client.token = strings.TrimSpace(args[i+1])
			}
			i++
		case strings.HasPrefix(arg, "--rpc="):
			c.client.endpoint = strings.TrimSpace(strings.TrimPrefix(arg, "--rpc="))
		case strings.HasPrefix(arg, "--token="):
			c.client.token = strings.TrimSpace(strings.TrimPrefix(arg, "--token="))
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}

func (c *cli) runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	light := fs.Bool("light", false, "Use a faster scrypt cost (local development only)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(c.stderr, "Usage: ratemint-cli keygen [--light] <keystore_file>")
		return 1
	}
	path := fs.Arg(0)
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(c.stderr, "Error: %s already exists\n", path)
		return 1
	}
	pass, err := c.passphrase()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(c.stderr, "Error generating key: %v\n", err)
		return 1
	}
	strength := c.strength
	if *light {
		strength = crypto.KeystoreLight
	}
	if err := crypto.SaveToKeystore(path, key, pass, strength); err != nil {
		fmt.Fprintf(c.stderr, "Error saving keystore: %v\n", err)
		return 1
	}
	fmt.Fprintf(c.stdout, "address: %s\n", key.Address().Hex())
	fmt.Fprintf(c.stdout, "bech32:  %s\n", crypto.EncodeAddress(key.Address()))
	fmt.Fprintf(c.stdout, "keystore saved to %s\n", path)
	return 0
}

func (c *cli) runAddress(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(c.stderr, "Usage: ratemint-cli address <keystore_file>")
		return 1
	}
	key, err := c.loadKey(args[0])
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(c.stdout, key.Address().Hex())
	return 0
}

func (c *cli) loadKey(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("keystore file required")
	}
	pass, err := c.passphrase()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("loading keystore %s: %w", path, err)
	}
	return key, nil
}

func (c *cli) printJSON(raw json.RawMessage) {
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		fmt.Fprintln(c.stdout, string(raw))
		return
	}
	pretty, _ := json.MarshalIndent(decoded, "", "  ")
	fmt.Fprintln(c.stdout, string(pretty))
}

func (c *cli) printUsage() {
	w := c.stdout
	fmt.Fprintln(w, "Usage: ratemint-cli [--rpc <url>] [--token <bearer>] <command> [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Keys:")
	fmt.Fprintln(w, "  keygen [--light] <keystore_file>")
	fmt.Fprintln(w, "  address <keystore_file>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Queries:")
	for _, name := range sortedNames(queryCommands) {
		fmt.Fprintf(w, "  %s %s\n", name, queryCommands[name].usage)
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Transactions (signed with --key <keystore_file>):")
	for _, name := range sortedNames(txCommands) {
		fmt.Fprintf(w, "  %s %s\n", name, txCommands[name].usage)
	}
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Environment: %s, %s, %s\n", envRPCURL, envRPCToken, passphrase.EnvKeystorePass)
}
