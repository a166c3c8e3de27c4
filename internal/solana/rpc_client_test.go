package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// rpcServer returns a server answering every request with result.
func rpcServer(t *testing.T, method string, result interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Method != method {
			t.Errorf("expected method %s, got %s", method, req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetProgramAccounts(t *testing.T) {
	var gotParams []json.RawMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Method != "getProgramAccounts" {
			t.Errorf("expected method getProgramAccounts, got %s", req.Method)
		}
		gotParams = req.Params

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": []map[string]interface{}{
				{
					"pubkey": "acct1",
					"account": map[string]interface{}{
						"lamports": uint64(5),
						"owner":    "prog",
						"data":     []string{"AQID", "base64"},
					},
				},
				{
					"pubkey": "acct2",
					"account": map[string]interface{}{
						"lamports": uint64(6),
						"owner":    "prog",
						"data":     []string{"", "base64"},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	accounts, err := client.GetProgramAccounts(context.Background(), "prog", &ProgramAccountsOpts{
		DataSize: 2728,
		Memcmp:   []MemcmpFilter{{Offset: 40, Bytes: "reg"}},
	})
	if err != nil {
		t.Fatalf("GetProgramAccounts: %v", err)
	}

	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Pubkey != "acct1" {
		t.Errorf("unexpected pubkey: %s", accounts[0].Pubkey)
	}
	if string(accounts[0].Account.Data) != "\x01\x02\x03" {
		t.Errorf("unexpected data: %x", accounts[0].Account.Data)
	}
	if accounts[1].Account.Lamports != 6 {
		t.Errorf("expected lamports 6, got %d", accounts[1].Account.Lamports)
	}

	if len(gotParams) != 2 {
		t.Fatalf("expected 2 params, got %d", len(gotParams))
	}
	var config struct {
		Encoding   string                   `json:"encoding"`
		Commitment string                   `json:"commitment"`
		Filters    []map[string]interface{} `json:"filters"`
	}
	if err := json.Unmarshal(gotParams[1], &config); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	if config.Encoding != "base64" {
		t.Errorf("expected base64 encoding, got %s", config.Encoding)
	}
	if config.Commitment != DefaultCommitment {
		t.Errorf("expected commitment %s, got %s", DefaultCommitment, config.Commitment)
	}
	if len(config.Filters) != 2 {
		t.Fatalf("expected 2 filters, got %d", len(config.Filters))
	}
	if config.Filters[0]["dataSize"] != float64(2728) {
		t.Errorf("unexpected dataSize filter: %v", config.Filters[0])
	}
	memcmp, ok := config.Filters[1]["memcmp"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected memcmp filter, got %v", config.Filters[1])
	}
	if memcmp["offset"] != float64(40) || memcmp["bytes"] != "reg" {
		t.Errorf("unexpected memcmp filter: %v", memcmp)
	}
}

func TestHTTPClient_GetProgramAccounts_BadData(t *testing.T) {
	server := rpcServer(t, "getProgramAccounts", []map[string]interface{}{
		{
			"pubkey": "acct1",
			"account": map[string]interface{}{
				"owner": "prog",
				"data":  []string{"not base64!", "base64"},
			},
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	if _, err := client.GetProgramAccounts(context.Background(), "prog", nil); err == nil {
		t.Fatal("expected decode error, got nil")
	}
}

func TestHTTPClient_GetMultipleAccounts(t *testing.T) {
	server := rpcServer(t, "getMultipleAccounts", map[string]interface{}{
		"value": []interface{}{
			map[string]interface{}{
				"lamports": uint64(1),
				"owner":    "prog",
				"data":     []string{"AQ==", "base64"},
			},
			nil,
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	infos, err := client.GetMultipleAccounts(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("GetMultipleAccounts: %v", err)
	}

	if len(infos) != 2 {
		t.Fatalf("expected 2 results, got %d", len(infos))
	}
	if infos[0] == nil || len(infos[0].Data) != 1 {
		t.Errorf("unexpected first account: %+v", infos[0])
	}
	if infos[1] != nil {
		t.Errorf("expected nil for missing account, got %+v", infos[1])
	}
}

func TestHTTPClient_GetMultipleAccounts_Batches(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			ID     uint64            `json:"id"`
			Params []json.RawMessage `json:"params"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		var keys []string
		json.Unmarshal(req.Params[0], &keys)
		if len(keys) > MaxMultipleAccounts {
			t.Errorf("batch of %d exceeds limit", len(keys))
		}

		value := make([]interface{}, len(keys))
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"value": value},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	keys := make([]string, 250)
	for i := range keys {
		keys[i] = "k"
	}

	client := NewHTTPClient(server.URL)
	infos, err := client.GetMultipleAccounts(context.Background(), keys)
	if err != nil {
		t.Fatalf("GetMultipleAccounts: %v", err)
	}

	if len(infos) != 250 {
		t.Errorf("expected 250 results, got %d", len(infos))
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", calls.Load())
	}
}

func TestHTTPClient_GetMultipleAccounts_ShortResponse(t *testing.T) {
	server := rpcServer(t, "getMultipleAccounts", map[string]interface{}{
		"value": []interface{}{nil},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	if _, err := client.GetMultipleAccounts(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected length mismatch error, got nil")
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  int64(999),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)
	ctx := context.Background()

	slot, err := client.GetSlot(ctx)
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}

	if slot != 999 {
		t.Errorf("expected slot 999, got %d", slot)
	}

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RetryExhausted(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(2),
		WithRetryDelay(time.Millisecond),
	)

	if _, err := client.GetSlot(context.Background()); err == nil {
		t.Fatal("expected error after retries, got nil")
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32600,
				"message": "Invalid Request",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	_, err := client.GetSlot(ctx)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	rpcErr, ok := err.(*rpcError)
	if !ok {
		t.Fatalf("expected rpcError, got %T", err)
	}

	if rpcErr.Code != -32600 {
		t.Errorf("expected code -32600, got %d", rpcErr.Code)
	}
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	server := rpcServer(t, "getAccountInfo", map[string]interface{}{
		"value": map[string]interface{}{
			"lamports":   uint64(1000000),
			"owner":      "11111111111111111111111111111111",
			"data":       []string{"SGVsbG8gV29ybGQ=", "base64"},
			"executable": false,
			"rentEpoch":  uint64(100),
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	info, err := client.GetAccountInfo(ctx, "testpubkey")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info == nil {
		t.Fatal("expected account info, got nil")
	}

	if info.Lamports != 1000000 {
		t.Errorf("expected lamports 1000000, got %d", info.Lamports)
	}

	if info.Owner != "11111111111111111111111111111111" {
		t.Errorf("unexpected owner: %s", info.Owner)
	}

	if string(info.Data) != "Hello World" {
		t.Errorf("unexpected data: %q", info.Data)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := rpcServer(t, "getAccountInfo", map[string]interface{}{
		"value": nil,
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	info, err := client.GetAccountInfo(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info != nil {
		t.Errorf("expected nil for not found, got %+v", info)
	}
}

func TestHTTPClient_GetBlockTime(t *testing.T) {
	server := rpcServer(t, "getBlockTime", int64(1700000000))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	bt, err := client.GetBlockTime(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetBlockTime: %v", err)
	}
	if bt == nil || *bt != 1700000000 {
		t.Errorf("unexpected block time: %v", bt)
	}
}

func TestHTTPClient_RateLimit(t *testing.T) {
	server := rpcServer(t, "getSlot", int64(1))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRateLimit(20))
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 25; i++ {
		if _, err := client.GetSlot(ctx); err != nil {
			t.Fatalf("GetSlot: %v", err)
		}
	}
	// Burst of 20 then 5 more at 20/s.
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("expected rate limiting to slow requests, took %v", elapsed)
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := client.GetSlot(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestDecodeAccountData(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		encoding string
		want     string
		wantErr  bool
	}{
		{"base64", "AQID", EncodingBase64, "\x01\x02\x03", false},
		{"empty encoding defaults to base64", "AQID", "", "\x01\x02\x03", false},
		{"base58", "Ldp", EncodingBase58, "\x01\x02\x03", false},
		{"bad base64", "***", EncodingBase64, "", true},
		{"unsupported", "AQID", "jsonParsed", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAccountData(tt.data, tt.encoding)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeAccountData: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %x, want %x", got, tt.want)
			}
		})
	}
}
