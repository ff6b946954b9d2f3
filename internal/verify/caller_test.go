package verify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wclink/internal/verify"
)

func TestRPCCaller(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x1626ba7e"}`))
	}))
	defer srv.Close()

	caller := verify.NewRPCCaller(map[string]string{"eip155:1": srv.URL}, srv.Client())
	out, err := caller.Call(context.Background(), "eip155:1", "0xcontract", []byte{0xde, 0xad})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(out) != 4 || out[0] != 0x16 {
		t.Fatalf("result = %x", out)
	}

	if gotBody["method"] != "eth_call" {
		t.Fatalf("method = %v", gotBody["method"])
	}
	params := gotBody["params"].([]any)
	callObj := params[0].(map[string]any)
	if callObj["to"] != "0xcontract" || !strings.HasPrefix(callObj["data"].(string), "0xdead") {
		t.Fatalf("call object = %v", callObj)
	}

	if _, err := caller.Call(context.Background(), "eip155:137", "0xcontract", nil); err == nil {
		t.Fatal("unmapped chain accepted")
	}
}

func TestRPCCaller_NodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"execution reverted"}}`))
	}))
	defer srv.Close()

	caller := verify.NewRPCCaller(map[string]string{"eip155:1": srv.URL}, srv.Client())
	if _, err := caller.Call(context.Background(), "eip155:1", "0xcontract", nil); err == nil {
		t.Fatal("node error surfaced as success")
	}
}
