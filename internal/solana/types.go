package solana

import (
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

// AccountInfo represents Solana account information with decoded data.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       []byte
	Executable bool
	RentEpoch  uint64
}

// KeyedAccount is one entry of getProgramAccounts.
type KeyedAccount struct {
	Pubkey  string
	Account AccountInfo
}

// ProgramAccountsOpts defines server-side filters for getProgramAccounts.
type ProgramAccountsOpts struct {
	DataSize   uint64 // 0 = no size filter
	Memcmp     []MemcmpFilter
	Commitment string // default "confirmed"
}

// MemcmpFilter matches Bytes (base58) at Offset within account data.
type MemcmpFilter struct {
	Offset uint64
	Bytes  string
}

// Supported account data encodings.
const (
	EncodingBase64 = "base64"
	EncodingBase58 = "base58"
)

// DecodeAccountData decodes an RPC [data, encoding] pair.
func DecodeAccountData(data, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingBase64, "":
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("decode base64 account data: %w", err)
		}
		return b, nil
	case EncodingBase58:
		b, err := base58.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode base58 account data: %w", err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unsupported account data encoding %q", encoding)
}

// filtersParam renders opts as the getProgramAccounts "filters" array.
func (o *ProgramAccountsOpts) filtersParam() []interface{} {
	var filters []interface{}
	if o.DataSize > 0 {
		filters = append(filters, map[string]interface{}{"dataSize": o.DataSize})
	}
	for _, m := range o.Memcmp {
		filters = append(filters, map[string]interface{}{
			"memcmp": map[string]interface{}{
				"offset": m.Offset,
				"bytes":  m.Bytes,
			},
		})
	}
	return filters
}
