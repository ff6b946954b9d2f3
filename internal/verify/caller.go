package verify

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// RPCCaller performs eth_call against per-chain JSON-RPC endpoints.
type RPCCaller struct {
	endpoints map[string]string // CAIP-2 chain id -> endpoint URL
	http      *http.Client
}

func NewRPCCaller(endpoints map[string]string, client *http.Client) *RPCCaller {
	if client == nil {
		client = http.DefaultClient
	}
	return &RPCCaller{endpoints: endpoints, http: client}
}

type ethCallRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type ethCallResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *RPCCaller) Call(ctx context.Context, chainID, to string, data []byte) ([]byte, error) {
	endpoint, ok := c.endpoints[chainID]
	if !ok {
		return nil, fmt.Errorf("verify: no rpc endpoint for chain %s", chainID)
	}

	body, err := json.Marshal(ethCallRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_call",
		Params: []any{
			map[string]string{"to": to, "data": "0x" + hex.EncodeToString(data)},
			"latest",
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify: eth_call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verify: eth_call: status %d", resp.StatusCode)
	}

	var out ethCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("verify: eth_call: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("verify: eth_call: %s", out.Error.Message)
	}
	return hex.DecodeString(strings.TrimPrefix(out.Result, "0x"))
}
