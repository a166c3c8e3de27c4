package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore and storage.MemberPowerStore
// using PostgreSQL tables power_snapshots, member_power and power_contributions.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.SnapshotStore    = (*SnapshotStore)(nil)
	_ storage.MemberPowerStore = (*SnapshotStore)(nil)
)

const snapshotColumns = `snapshot_id, registrar, evaluated_at, accounts_total, members_total, total_power::text, created_at`

// Save persists a snapshot with its members and contributions in one
// transaction. Returns ErrDuplicateKey if snapshot_id exists.
func (s *SnapshotStore) Save(ctx context.Context, snap *domain.PowerSnapshot, members []*domain.MemberPowerRecord, contributions []*domain.ContributionRecord) (err error) {
	if snap == nil || snap.SnapshotID == "" {
		return storage.ErrInvalidInput
	}
	for _, m := range members {
		if m == nil || m.SnapshotID != snap.SnapshotID {
			return storage.ErrInvalidInput
		}
	}
	for _, c := range contributions {
		if c == nil || c.SnapshotID != snap.SnapshotID {
			return storage.ErrInvalidInput
		}
	}

	start := time.Now()
	defer func() { observe("save_snapshot", start, err) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO power_snapshots (
			snapshot_id, registrar, evaluated_at, accounts_total, members_total, total_power, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		snap.SnapshotID,
		snap.Registrar,
		snap.EvaluatedAt,
		snap.AccountsTotal,
		snap.MembersTotal,
		snap.TotalPower.String(),
		snap.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}

	batch := &pgx.Batch{}
	for _, m := range members {
		batch.Queue(`
			INSERT INTO member_power (
				snapshot_id, registrar, wallet, total_power, accounts_scanned, evaluated_at
			) VALUES ($1, $2, $3, $4, $5, $6)
		`, m.SnapshotID, m.Registrar, m.Wallet, m.TotalPower.String(), m.AccountsScanned, m.EvaluatedAt)
	}
	for _, c := range contributions {
		batch.Queue(`
			INSERT INTO power_contributions (
				contribution_id, snapshot_id, wallet, source_account, slot_index, lockup_kind,
				start_ts, end_ts, amount, multiplier, power
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			c.ContributionID, c.SnapshotID, c.Wallet, c.SourceAccount, c.SlotIndex, string(c.LockupKind),
			c.StartTs, c.EndTs, c.Amount.String(), c.Multiplier.String(), c.Power.String(),
		)
	}

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, execErr := br.Exec(); execErr != nil {
				br.Close()
				if isDuplicateKeyError(execErr) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert snapshot rows: %w", execErr)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a snapshot by its ID. Returns ErrNotFound if not exists.
func (s *SnapshotStore) GetByID(ctx context.Context, snapshotID string) (*domain.PowerSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+snapshotColumns+`
		FROM power_snapshots
		WHERE snapshot_id = $1
	`, snapshotID)

	snap, err := scanSnapshot(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot by id: %w", err)
	}
	return snap, nil
}

// Latest retrieves the newest snapshot for registrar. Returns ErrNotFound if none.
func (s *SnapshotStore) Latest(ctx context.Context, registrar string) (*domain.PowerSnapshot, error) {
	list, err := s.List(ctx, registrar, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, storage.ErrNotFound
	}
	return list[0], nil
}

// List retrieves up to limit snapshots for registrar, newest first.
// A non-positive limit returns all snapshots.
func (s *SnapshotStore) List(ctx context.Context, registrar string, limit int) (result []*domain.PowerSnapshot, err error) {
	start := time.Now()
	defer func() { observe("list_snapshots", start, err) }()

	query := `
		SELECT ` + snapshotColumns + `
		FROM power_snapshots
		WHERE registrar = $1
		ORDER BY evaluated_at DESC, created_at DESC, snapshot_id ASC
	`
	args := []any{registrar}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		result = append(result, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return result, nil
}

// GetBySnapshot retrieves all members of a snapshot ordered by total_power DESC, wallet ASC.
func (s *SnapshotStore) GetBySnapshot(ctx context.Context, snapshotID string) (result []*domain.MemberPowerRecord, err error) {
	start := time.Now()
	defer func() { observe("get_members", start, err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT snapshot_id, registrar, wallet, total_power::text, accounts_scanned, evaluated_at
		FROM member_power
		WHERE snapshot_id = $1
		ORDER BY total_power DESC, wallet ASC
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("get members by snapshot: %w", err)
	}
	defer rows.Close()

	result = make([]*domain.MemberPowerRecord, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member row: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member rows: %w", err)
	}
	return result, nil
}

// GetMember retrieves one member row. Returns ErrNotFound if not exists.
func (s *SnapshotStore) GetMember(ctx context.Context, snapshotID, wallet string) (*domain.MemberPowerRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT snapshot_id, registrar, wallet, total_power::text, accounts_scanned, evaluated_at
		FROM member_power
		WHERE snapshot_id = $1 AND wallet = $2
	`, snapshotID, wallet)

	m, err := scanMember(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// GetContributions retrieves a member's contributions ordered by source_account, slot_index.
func (s *SnapshotStore) GetContributions(ctx context.Context, snapshotID, wallet string) ([]*domain.ContributionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT contribution_id, snapshot_id, wallet, source_account, slot_index, lockup_kind,
		       start_ts, end_ts, amount::text, multiplier::text, power::text
		FROM power_contributions
		WHERE snapshot_id = $1 AND wallet = $2
		ORDER BY source_account ASC, slot_index ASC
	`, snapshotID, wallet)
	if err != nil {
		return nil, fmt.Errorf("get contributions: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.ContributionRecord, 0)
	for rows.Next() {
		var (
			c                       domain.ContributionRecord
			kind                    string
			amount, mult, powerText string
		)
		err := rows.Scan(
			&c.ContributionID,
			&c.SnapshotID,
			&c.Wallet,
			&c.SourceAccount,
			&c.SlotIndex,
			&kind,
			&c.StartTs,
			&c.EndTs,
			&amount,
			&mult,
			&powerText,
		)
		if err != nil {
			return nil, fmt.Errorf("scan contribution row: %w", err)
		}
		c.LockupKind = domain.LockupKind(kind)
		if c.Amount, err = parseNumeric("amount", amount); err != nil {
			return nil, err
		}
		if c.Multiplier, err = parseNumeric("multiplier", mult); err != nil {
			return nil, err
		}
		if c.Power, err = parseNumeric("power", powerText); err != nil {
			return nil, err
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contribution rows: %w", err)
	}
	return result, nil
}

// scanSnapshot scans a single row into a PowerSnapshot.
func scanSnapshot(row pgx.Row) (*domain.PowerSnapshot, error) {
	var (
		snap  domain.PowerSnapshot
		total string
	)
	err := row.Scan(
		&snap.SnapshotID,
		&snap.Registrar,
		&snap.EvaluatedAt,
		&snap.AccountsTotal,
		&snap.MembersTotal,
		&total,
		&snap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if snap.TotalPower, err = parseNumeric("total_power", total); err != nil {
		return nil, err
	}
	return &snap, nil
}

// scanMember scans a single row into a MemberPowerRecord.
func scanMember(row pgx.Row) (*domain.MemberPowerRecord, error) {
	var (
		m     domain.MemberPowerRecord
		total string
	)
	err := row.Scan(
		&m.SnapshotID,
		&m.Registrar,
		&m.Wallet,
		&total,
		&m.AccountsScanned,
		&m.EvaluatedAt,
	)
	if err != nil {
		return nil, err
	}
	if m.TotalPower, err = parseNumeric("total_power", total); err != nil {
		return nil, err
	}
	return &m, nil
}
