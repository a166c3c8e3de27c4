// Package power aggregates decoded VSR deposits into per-member voting power.
//
// The engine performs no I/O. Accounts, configuration, the alias table and
// the evaluation timestamp are explicit inputs, so identical inputs always
// produce identical results.
package power

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"vsr-power-lab/internal/authority"
	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/multiplier"
	"vsr-power-lab/internal/vsr"
)

// Options configures an Engine.
type Options struct {
	// ProgramID, when set, rejects accounts with a different owner.
	ProgramID domain.PubKey
	// PlaceholderAmounts are native amounts treated as phantom deposits.
	// Empty uses vsr.DefaultPlaceholderAmounts.
	PlaceholderAmounts []uint64
	// Workers bounds member parallelism. Zero uses GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

// Report is the result of one ComputePower run.
type Report struct {
	// EvaluatedAt is the timestamp used for multiplier math, including the
	// registrar time offset.
	EvaluatedAt int64
	Results     []domain.MemberPowerResult
	Diagnostics Diagnostics
}

// TotalPower sums the power of all members.
func (r *Report) TotalPower() decimal.Decimal {
	total := decimal.Zero
	for _, res := range r.Results {
		total = total.Add(res.TotalPower)
	}
	return total
}

// Member returns the result for wallet.
func (r *Report) Member(wallet domain.PubKey) (domain.MemberPowerResult, bool) {
	i, ok := slices.BinarySearchFunc(r.Results, wallet, func(res domain.MemberPowerResult, k domain.PubKey) int {
		return domain.ComparePubKeys(res.Member, k)
	})
	if !ok {
		return domain.MemberPowerResult{}, false
	}
	return r.Results[i], true
}

// Engine computes voting power.
type Engine struct {
	programID domain.PubKey
	phantom   *vsr.PhantomFilter
	workers   int
	logger    *slog.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		programID: opts.ProgramID,
		phantom:   vsr.NewPhantomFilter(opts.PlaceholderAmounts...),
		workers:   workers,
		logger:    logger,
	}
}

// ComputePower computes power for every member that owns at least one
// voter account, using default options.
func ComputePower(accounts []domain.RawAccount, cfg domain.RegistrarConfig, aliases *authority.Table, now int64) (*Report, error) {
	return New(Options{}).ComputePower(context.Background(), accounts, cfg, aliases, now)
}

// ComputeMember computes power for a single wallet using default options.
func ComputeMember(accounts []domain.RawAccount, cfg domain.RegistrarConfig, aliases *authority.Table, wallet domain.PubKey, now int64) (*domain.MemberPowerResult, error) {
	res, _, err := New(Options{}).ComputeMember(context.Background(), accounts, cfg, aliases, wallet, now)
	return res, err
}

// ComputePower computes power for every member. Results are sorted by member key.
func (e *Engine) ComputePower(ctx context.Context, accounts []domain.RawAccount, cfg domain.RegistrarConfig, aliases *authority.Table, now int64) (*Report, error) {
	if err := multiplier.Validate(cfg); err != nil {
		return nil, err
	}
	evalAt := now + cfg.TimeOffset

	var diag Diagnostics
	voters := e.scan(accounts, cfg, &diag)

	groups := make(map[domain.PubKey][]*domain.VoterRecord)
	for _, v := range voters {
		member := aliases.Resolve(v.Authority)
		groups[member] = append(groups[member], v)
	}
	members := make([]domain.PubKey, 0, len(groups))
	for m := range groups {
		members = append(members, m)
	}
	slices.SortFunc(members, domain.ComparePubKeys)

	results := make([]domain.MemberPowerResult, len(members))
	memberDiags := make([]memberDiagnostics, len(members))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, member := range members {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], memberDiags[i] = e.aggregate(member, groups[member], cfg, evalAt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute power: %w", err)
	}

	for _, md := range memberDiags {
		diag.merge(md)
	}

	e.logger.Debug("power computed",
		"members", len(results),
		"voters", diag.VotersDecoded,
		"phantoms", diag.PhantomsDropped,
		"other_mint", diag.OtherMintSkipped,
		"duplicates", diag.DuplicatesDropped,
		"eval_at", evalAt,
	)

	return &Report{
		EvaluatedAt: evalAt,
		Results:     results,
		Diagnostics: diag,
	}, nil
}

// ComputeMember computes power for wallet. An alias wallet resolves to its
// primary. A member with no voter accounts gets a zero result.
func (e *Engine) ComputeMember(ctx context.Context, accounts []domain.RawAccount, cfg domain.RegistrarConfig, aliases *authority.Table, wallet domain.PubKey, now int64) (*domain.MemberPowerResult, Diagnostics, error) {
	var diag Diagnostics
	if err := multiplier.Validate(cfg); err != nil {
		return nil, diag, err
	}
	if err := ctx.Err(); err != nil {
		return nil, diag, err
	}

	id := aliases.Identity(wallet)
	var owned []*domain.VoterRecord
	for _, v := range e.scan(accounts, cfg, &diag) {
		if id.Controls(v.Authority) {
			owned = append(owned, v)
		}
	}

	res, md := e.aggregate(id.PrimaryKey, owned, cfg, now+cfg.TimeOffset)
	diag.merge(md)
	return &res, diag, nil
}

// scan classifies and decodes accounts, returning voter records sorted by
// address. Each address is scanned once.
func (e *Engine) scan(accounts []domain.RawAccount, cfg domain.RegistrarConfig, diag *Diagnostics) []*domain.VoterRecord {
	diag.AccountsTotal = len(accounts)
	seen := make(map[domain.PubKey]struct{}, len(accounts))
	voters := make([]*domain.VoterRecord, 0, len(accounts))

	for _, acct := range accounts {
		if _, dup := seen[acct.Address]; dup {
			diag.DuplicateAccounts++
			continue
		}
		seen[acct.Address] = struct{}{}

		variant, err := vsr.ClassifyAccount(acct, e.programID)
		if err != nil {
			if errors.Is(err, vsr.ErrOwnerMismatch) {
				diag.OwnerMismatches++
			} else {
				diag.ClassificationMismatches++
			}
			diag.addf("%s: %v", acct.Address, err)
			e.logger.Debug("account skipped", "address", acct.Address.String(), "error", err)
			continue
		}

		switch variant {
		case vsr.VariantRegistrar:
			diag.RegistrarsSeen++
			continue
		case vsr.VariantUnknown:
			diag.UnknownAccounts++
			continue
		}

		rec, err := vsr.DecodeVoter(acct)
		if err != nil {
			var de *vsr.DecodeError
			if errors.As(err, &de) {
				diag.DecodeErrors++
			} else {
				diag.ClassificationMismatches++
			}
			diag.addf("%s: %v", acct.Address, err)
			continue
		}
		if !cfg.Registrar.IsZero() && rec.Registrar != cfg.Registrar {
			diag.RegistrarMismatches++
			continue
		}

		diag.VotersDecoded++
		voters = append(voters, rec)
	}

	slices.SortFunc(voters, func(a, b *domain.VoterRecord) int {
		return domain.ComparePubKeys(a.Address, b.Address)
	})
	return voters
}

type dedupKey struct {
	amount uint64
	kind   domain.LockupKind
	start  int64
	end    int64
}

type candidate struct {
	deposit domain.DepositEntry
	source  domain.PubKey
}

// preferred reports whether a should survive over b: lowest slot index, then
// lowest account address.
func preferred(a, b candidate) bool {
	if a.deposit.SlotIndex != b.deposit.SlotIndex {
		return a.deposit.SlotIndex < b.deposit.SlotIndex
	}
	return domain.ComparePubKeys(a.source, b.source) < 0
}

func (e *Engine) aggregate(member domain.PubKey, records []*domain.VoterRecord, cfg domain.RegistrarConfig, evalAt int64) (domain.MemberPowerResult, memberDiagnostics) {
	var md memberDiagnostics
	survivors := make(map[dedupKey]candidate)

	for _, rec := range records {
		used := rec.UsedDeposits()
		mintDeposits := used[:0]
		for _, d := range used {
			if d.VotingMintConfigIdx != cfg.VotingMintIndex {
				md.otherMints++
				continue
			}
			mintDeposits = append(mintDeposits, d)
		}

		kept, dropped := e.phantom.Filter(mintDeposits)
		md.phantoms += dropped

		for _, d := range kept {
			if d.AmountDepositedNative == 0 {
				md.zeroAmounts++
				continue
			}
			key := dedupKey{
				amount: d.AmountDepositedNative,
				kind:   d.Lockup.Kind,
				start:  d.Lockup.StartTs,
				end:    d.Lockup.EndTs,
			}
			c := candidate{deposit: d, source: rec.Address}
			if prev, ok := survivors[key]; ok {
				md.duplicates++
				if !preferred(c, prev) {
					continue
				}
			}
			survivors[key] = c
		}
	}

	winners := make([]candidate, 0, len(survivors))
	for _, c := range survivors {
		winners = append(winners, c)
	}
	slices.SortFunc(winners, func(a, b candidate) int {
		if c := domain.ComparePubKeys(a.source, b.source); c != 0 {
			return c
		}
		return cmp.Compare(a.deposit.SlotIndex, b.deposit.SlotIndex)
	})

	res := domain.MemberPowerResult{
		Member:          member,
		TotalPower:      decimal.Zero,
		Contributions:   make([]domain.PowerContribution, 0, len(winners)),
		AccountsScanned: uint32(len(records)),
	}
	for _, c := range winners {
		amount := domain.NativeToDecimal(c.deposit.AmountDepositedNative)
		mult := multiplier.Multiplier(c.deposit.Lockup, evalAt, cfg)
		pow := amount.Mul(mult).Round(domain.TokenDecimals)

		res.Contributions = append(res.Contributions, domain.PowerContribution{
			Amount:        amount,
			Multiplier:    mult,
			Power:         pow,
			SourceAccount: c.source,
			SlotIndex:     c.deposit.SlotIndex,
			Lockup:        c.deposit.Lockup,
		})
		res.TotalPower = res.TotalPower.Add(pow)
	}
	return res, md
}
