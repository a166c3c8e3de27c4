package stub

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/mr-tron/base58"

	"vsr-power-lab/internal/solana"
)

// ErrNotFound is returned when a block time is not found.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient over an in-memory account set.
type RPCClient struct {
	mu         sync.RWMutex
	Accounts   map[string]*solana.AccountInfo
	BlockTimes map[int64]int64
	Slot       int64

	// Err, when set, is returned by every call.
	Err error
	// Calls counts requests per method.
	Calls map[string]int
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:   make(map[string]*solana.AccountInfo),
		BlockTimes: make(map[int64]int64),
		Calls:      make(map[string]int),
	}
}

// AddAccount adds or replaces an account in the stub store.
func (c *RPCClient) AddAccount(pubkey, owner string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = &solana.AccountInfo{
		Lamports: 1,
		Owner:    owner,
		Data:     append([]byte(nil), data...),
	}
}

// RemoveAccount deletes an account from the stub store.
func (c *RPCClient) RemoveAccount(pubkey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Accounts, pubkey)
}

// CallCount returns the number of calls made to method.
func (c *RPCClient) CallCount(method string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Calls[method]
}

func (c *RPCClient) record(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls[method]++
	return c.Err
}

// GetProgramAccounts returns stored accounts owned by programID that match opts.
// Results are ordered by pubkey.
func (c *RPCClient) GetProgramAccounts(_ context.Context, programID string, opts *solana.ProgramAccountsOpts) ([]solana.KeyedAccount, error) {
	if err := c.record("getProgramAccounts"); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []solana.KeyedAccount
	for pubkey, info := range c.Accounts {
		if info.Owner != programID {
			continue
		}
		ok, err := matches(info.Data, opts)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, solana.KeyedAccount{Pubkey: pubkey, Account: *info})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pubkey < out[j].Pubkey })
	return out, nil
}

func matches(data []byte, opts *solana.ProgramAccountsOpts) (bool, error) {
	if opts == nil {
		return true, nil
	}
	if opts.DataSize > 0 && uint64(len(data)) != opts.DataSize {
		return false, nil
	}
	for _, m := range opts.Memcmp {
		want, err := base58.Decode(m.Bytes)
		if err != nil {
			return false, err
		}
		end := m.Offset + uint64(len(want))
		if end > uint64(len(data)) || !bytes.Equal(data[m.Offset:end], want) {
			return false, nil
		}
	}
	return true, nil
}

// GetAccountInfo retrieves an account from the stub store. Returns nil if absent.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	if err := c.record("getAccountInfo"); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.Accounts[pubkey]
	if !ok {
		return nil, nil
	}
	cp := *info
	return &cp, nil
}

// GetMultipleAccounts retrieves accounts in input order; missing accounts are nil.
func (c *RPCClient) GetMultipleAccounts(_ context.Context, pubkeys []string) ([]*solana.AccountInfo, error) {
	if err := c.record("getMultipleAccounts"); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*solana.AccountInfo, len(pubkeys))
	for i, pk := range pubkeys {
		if info, ok := c.Accounts[pk]; ok {
			cp := *info
			out[i] = &cp
		}
	}
	return out, nil
}

// GetSlot returns the configured slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	if err := c.record("getSlot"); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Slot, nil
}

// GetBlockTime returns the stored block time for slot.
func (c *RPCClient) GetBlockTime(_ context.Context, slot int64) (*int64, error) {
	if err := c.record("getBlockTime"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	bt, ok := c.BlockTimes[slot]
	if !ok {
		return nil, ErrNotFound
	}
	return &bt, nil
}
