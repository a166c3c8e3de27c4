package snapshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/solana"
	"vsr-power-lab/internal/vsr"
)

// accountJSON is one entry of the accounts input file. Address may also be
// given as "pubkey", matching getProgramAccounts output.
type accountJSON struct {
	Address string      `json:"address"`
	Pubkey  string      `json:"pubkey"`
	Owner   string      `json:"owner"`
	Data    accountData `json:"data"`
}

// accountData accepts a base64 string, an RPC [data, encoding] tuple or a
// raw byte array such as [1, 2, 3].
type accountData []byte

func (d *accountData) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*d = nil
		return nil
	}

	var (
		raw      string
		encoding = solana.EncodingBase64
	)
	if b[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(b, &elems); err != nil {
			return fmt.Errorf("data array: %w", err)
		}
		if len(elems) == 0 || bytes.TrimSpace(elems[0])[0] != '"' {
			return d.unmarshalBytes(elems)
		}

		var tuple []string
		if err := json.Unmarshal(b, &tuple); err != nil {
			return fmt.Errorf("data tuple: %w", err)
		}
		if len(tuple) > 2 {
			return fmt.Errorf("data tuple must have 1 or 2 elements, got %d", len(tuple))
		}
		raw = tuple[0]
		if len(tuple) == 2 {
			encoding = tuple[1]
		}
	} else if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("data: %w", err)
	}

	decoded, err := solana.DecodeAccountData(raw, encoding)
	if err != nil {
		return err
	}
	*d = decoded
	return nil
}

// unmarshalBytes decodes a JSON array of integers in [0, 255].
func (d *accountData) unmarshalBytes(elems []json.RawMessage) error {
	out := make([]byte, len(elems))
	for i, e := range elems {
		var v int
		if err := json.Unmarshal(e, &v); err != nil {
			return fmt.Errorf("data byte %d: %w", i, err)
		}
		if v < 0 || v > 255 {
			return fmt.Errorf("data byte %d: %d out of range [0, 255]", i, v)
		}
		out[i] = byte(v)
	}
	*d = out
	return nil
}

// ParseAccounts decodes the accounts input contract: a JSON array of
// {address, owner, data} objects.
func ParseAccounts(r io.Reader) ([]domain.RawAccount, error) {
	var entries []accountJSON
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}

	accounts := make([]domain.RawAccount, 0, len(entries))
	for i, e := range entries {
		addrStr := e.Address
		if addrStr == "" {
			addrStr = e.Pubkey
		}
		addr, err := domain.ParsePubKey(addrStr)
		if err != nil {
			return nil, fmt.Errorf("account %d: address: %w", i, err)
		}
		var owner domain.PubKey
		if e.Owner != "" {
			owner, err = domain.ParsePubKey(e.Owner)
			if err != nil {
				return nil, fmt.Errorf("account %d: owner: %w", i, err)
			}
		}
		accounts = append(accounts, domain.RawAccount{
			Address: addr,
			Owner:   owner,
			Data:    []byte(e.Data),
		})
	}
	return accounts, nil
}

// registrarConfigJSON is the registrar config input contract. Weights are
// unit-normalized decimals (string or number).
type registrarConfigJSON struct {
	Registrar                string          `json:"registrar"`
	GoverningMint            string          `json:"governingMint"`
	VotingMintIndex          uint8           `json:"votingMintIndex"`
	BaselineVoteWeight       decimal.Decimal `json:"baselineVoteWeight"`
	MaxExtraLockupVoteWeight decimal.Decimal `json:"maxExtraLockupVoteWeight"`
	LockupSaturationSecs     uint64          `json:"lockupSaturationSecs"`
	TimeOffset               int64           `json:"timeOffset"`
}

// ParseRegistrarConfig decodes a registrar config JSON document.
func ParseRegistrarConfig(r io.Reader) (domain.RegistrarConfig, error) {
	var raw registrarConfigJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return domain.RegistrarConfig{}, fmt.Errorf("decode registrar config: %w", err)
	}

	cfg := domain.RegistrarConfig{
		VotingMintIndex:          raw.VotingMintIndex,
		BaselineVoteWeight:       raw.BaselineVoteWeight,
		MaxExtraLockupVoteWeight: raw.MaxExtraLockupVoteWeight,
		LockupSaturationSecs:     raw.LockupSaturationSecs,
		TimeOffset:               raw.TimeOffset,
	}
	var err error
	if raw.Registrar != "" {
		if cfg.Registrar, err = domain.ParsePubKey(raw.Registrar); err != nil {
			return domain.RegistrarConfig{}, fmt.Errorf("registrar: %w", err)
		}
	}
	if raw.GoverningMint != "" {
		if cfg.GoverningMint, err = domain.ParsePubKey(raw.GoverningMint); err != nil {
			return domain.RegistrarConfig{}, fmt.Errorf("governingMint: %w", err)
		}
	}
	return cfg, nil
}

// LoadRegistrarConfig reads a registrar config file.
func LoadRegistrarConfig(path string) (domain.RegistrarConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.RegistrarConfig{}, fmt.Errorf("open registrar config: %w", err)
	}
	defer f.Close()
	return ParseRegistrarConfig(f)
}

// FileSource reads a snapshot from an accounts JSON file. A registrar
// account found in the file is decoded into Snapshot.Registrar.
type FileSource struct {
	path      string
	programID domain.PubKey
}

var _ Source = (*FileSource)(nil)

// NewFileSource creates a file-backed snapshot source. A non-zero
// programID restricts the registrar account to ones owned by it.
func NewFileSource(path string, programID domain.PubKey) *FileSource {
	return &FileSource{path: path, programID: programID}
}

// Fetch reads and parses the accounts file.
func (s *FileSource) Fetch(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open accounts: %w", err)
	}
	defer f.Close()

	accounts, err := ParseAccounts(f)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Accounts: accounts}
	for _, acct := range accounts {
		if v, err := vsr.ClassifyAccount(acct, s.programID); err != nil || v != vsr.VariantRegistrar {
			continue
		}
		reg, err := vsr.DecodeRegistrar(acct)
		if err != nil {
			continue
		}
		snap.Registrar = reg
		break
	}
	return snap, nil
}

// WriteAccounts encodes accounts in the input contract format with base64
// data. Used to capture RPC snapshots for offline replays.
func WriteAccounts(w io.Writer, accounts []domain.RawAccount) error {
	type out struct {
		Address string    `json:"address"`
		Owner   string    `json:"owner"`
		Data    [2]string `json:"data"`
	}
	entries := make([]out, 0, len(accounts))
	for _, a := range accounts {
		entries = append(entries, out{
			Address: a.Address.String(),
			Owner:   a.Owner.String(),
			Data:    [2]string{base64.StdEncoding.EncodeToString(a.Data), solana.EncodingBase64},
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
