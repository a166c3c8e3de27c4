package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/solana"
	"vsr-power-lab/internal/vsr"
)

// RPCSource fetches voter and registrar accounts of one registrar via RPC.
type RPCSource struct {
	rpc       solana.RPCClient
	programID domain.PubKey
	registrar domain.PubKey
	logger    *slog.Logger
}

var _ Source = (*RPCSource)(nil)

// NewRPCSource creates an RPC-backed snapshot source.
func NewRPCSource(rpc solana.RPCClient, programID, registrar domain.PubKey, logger *slog.Logger) *RPCSource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RPCSource{
		rpc:       rpc,
		programID: programID,
		registrar: registrar,
		logger:    logger,
	}
}

// VoterFilter returns the server-side filter selecting full-size voter
// accounts of registrar.
func VoterFilter(registrar domain.PubKey) *solana.ProgramAccountsOpts {
	return &solana.ProgramAccountsOpts{
		DataSize: vsr.VoterAccountSize,
		Memcmp: []solana.MemcmpFilter{
			{Offset: vsr.VoterRegistrarOffset, Bytes: registrar.String()},
		},
	}
}

// Fetch reads all voter accounts of the registrar, the registrar account and
// the current slot concurrently.
func (s *RPCSource) Fetch(ctx context.Context) (*Snapshot, error) {
	var (
		keyed []solana.KeyedAccount
		reg   *vsr.Registrar
		slot  int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		keyed, err = s.rpc.GetProgramAccounts(gctx, s.programID.String(), VoterFilter(s.registrar))
		if err != nil {
			return fmt.Errorf("get voter accounts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		reg, err = s.FetchRegistrar(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		slot, err = s.rpc.GetSlot(gctx)
		if err != nil {
			return fmt.Errorf("get slot: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	accounts := make([]domain.RawAccount, 0, len(keyed))
	for _, ka := range keyed {
		acct, err := rawFromInfo(ka.Pubkey, &ka.Account)
		if err != nil {
			s.logger.Warn("skipping account", "address", ka.Pubkey, "error", err)
			continue
		}
		accounts = append(accounts, acct)
	}

	s.logger.Debug("snapshot fetched",
		"registrar", s.registrar.String(),
		"accounts", len(accounts),
		"slot", slot,
	)

	return &Snapshot{Accounts: accounts, Registrar: reg, Slot: slot}, nil
}

// FetchRegistrar reads and decodes the registrar account.
func (s *RPCSource) FetchRegistrar(ctx context.Context) (*vsr.Registrar, error) {
	info, err := s.rpc.GetAccountInfo(ctx, s.registrar.String())
	if err != nil {
		return nil, fmt.Errorf("get registrar: %w", err)
	}
	if info == nil {
		return nil, fmt.Errorf("registrar %s not found", s.registrar)
	}
	acct, err := rawFromInfo(s.registrar.String(), info)
	if err != nil {
		return nil, fmt.Errorf("registrar: %w", err)
	}
	if !s.programID.IsZero() && acct.Owner != s.programID {
		return nil, fmt.Errorf("registrar %s owned by %s, expected %s", s.registrar, acct.Owner, s.programID)
	}
	return vsr.DecodeRegistrar(acct)
}

// FetchWallet reads only the voter accounts of the given authorities, located
// by PDA derivation. Authorities without a voter account are skipped.
func (s *RPCSource) FetchWallet(ctx context.Context, authorities []domain.PubKey) ([]domain.RawAccount, error) {
	addrs := make([]string, 0, len(authorities))
	for _, auth := range authorities {
		addr, _, err := vsr.DeriveVoterAddress(s.registrar, auth, s.programID)
		if err != nil {
			return nil, fmt.Errorf("derive voter address for %s: %w", auth, err)
		}
		addrs = append(addrs, addr.String())
	}
	if len(addrs) == 0 {
		return nil, nil
	}

	infos, err := s.rpc.GetMultipleAccounts(ctx, addrs)
	if err != nil {
		return nil, fmt.Errorf("get voter accounts: %w", err)
	}

	var accounts []domain.RawAccount
	for i, info := range infos {
		if info == nil {
			continue
		}
		acct, err := rawFromInfo(addrs[i], info)
		if err != nil {
			s.logger.Warn("skipping account", "address", addrs[i], "error", err)
			continue
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

func rawFromInfo(pubkey string, info *solana.AccountInfo) (domain.RawAccount, error) {
	addr, err := domain.ParsePubKey(pubkey)
	if err != nil {
		return domain.RawAccount{}, err
	}
	owner, err := domain.ParsePubKey(info.Owner)
	if err != nil {
		return domain.RawAccount{}, fmt.Errorf("owner: %w", err)
	}
	return domain.RawAccount{Address: addr, Owner: owner, Data: info.Data}, nil
}
