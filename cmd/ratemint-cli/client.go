package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	envRPCURL         = "RATEMINT_RPC_URL"
	envRPCToken       = "RATEMINT_RPC_TOKEN"
	defaultRPCAddress = "http://127.0.0.1:8545"
)

// rpcClient speaks JSON-RPC 2.0 to a ratemintd node.
type rpcClient struct {
	endpoint string
	token    string
	http     *http.Client
}

func newRPCClient(endpoint, token string) *rpcClient {
	return &rpcClient{
		endpoint: strings.TrimSpace(endpoint),
		token:    strings.TrimSpace(token),
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv(envRPCURL)); v != "" {
		return v
	}
	return defaultRPCAddress
}

// rpcError is an error object returned by the node.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("error from node (%d): %s", e.Code, e.Message)
}

// call invokes method and returns the raw result. Node-side failures are
// returned as *rpcError.
func (c *rpcClient) call(method string, params ...interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node at %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response from node (HTTP %d): %w", resp.StatusCode, err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// callInto decodes the result of method into out.
func (c *rpcClient) callInto(out interface{}, method string, params ...interface{}) error {
	raw, err := c.call(method, params...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
