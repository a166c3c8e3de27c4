package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/storage"
)

// PowerHistoryStore implements storage.PowerHistoryStore using ClickHouse.
type PowerHistoryStore struct {
	conn *Conn
}

// NewPowerHistoryStore creates a new PowerHistoryStore.
func NewPowerHistoryStore(conn *Conn) *PowerHistoryStore {
	return &PowerHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PowerHistoryStore = (*PowerHistoryStore)(nil)

// InsertBulk appends history rows. Fails entire batch on any duplicate
// (snapshot_id, wallet), within the batch or against stored rows.
func (s *PowerHistoryStore) InsertBulk(ctx context.Context, records []*domain.MemberPowerRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { observe("insert_power_history", start, err) }()

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(records))
	snapshotIDs := make([]string, 0, 1)
	for _, r := range records {
		if r == nil || r.SnapshotID == "" || r.Wallet == "" {
			return storage.ErrInvalidInput
		}
		key := r.SnapshotID + "|" + r.Wallet
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
		if len(snapshotIDs) == 0 || snapshotIDs[len(snapshotIDs)-1] != r.SnapshotID {
			snapshotIDs = append(snapshotIDs, r.SnapshotID)
		}
	}

	// MergeTree does not enforce uniqueness; check stored rows explicitly.
	exists, err := s.anyExists(ctx, snapshotIDs, seen)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO member_power_history (
			snapshot_id, registrar, wallet, evaluated_at, total_power, accounts_scanned
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.SnapshotID,
			r.Registrar,
			r.Wallet,
			r.EvaluatedAt,
			r.TotalPower,
			uint32(r.AccountsScanned),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// anyExists reports whether any key of keys is already stored.
func (s *PowerHistoryStore) anyExists(ctx context.Context, snapshotIDs []string, keys map[string]struct{}) (bool, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT snapshot_id, wallet
		FROM member_power_history
		WHERE snapshot_id IN (?)
	`, snapshotIDs)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var snapshotID, wallet string
		if err := rows.Scan(&snapshotID, &wallet); err != nil {
			return false, err
		}
		if _, ok := keys[snapshotID+"|"+wallet]; ok {
			return true, nil
		}
	}
	return false, rows.Err()
}

// GetByWallet retrieves rows within [start, end] (inclusive), ordered by evaluated_at ASC.
func (s *PowerHistoryStore) GetByWallet(ctx context.Context, registrar, wallet string, start, end int64) (result []*domain.MemberPowerRecord, err error) {
	began := time.Now()
	defer func() { observe("get_power_history", began, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT snapshot_id, registrar, wallet, evaluated_at, total_power, accounts_scanned
		FROM member_power_history FINAL
		WHERE registrar = ? AND wallet = ? AND evaluated_at >= ? AND evaluated_at <= ?
		ORDER BY evaluated_at ASC, snapshot_id ASC
	`, registrar, wallet, start, end)
	if err != nil {
		return nil, fmt.Errorf("query power history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r        domain.MemberPowerRecord
			power    decimal.Decimal
			accounts uint32
		)
		if err := rows.Scan(&r.SnapshotID, &r.Registrar, &r.Wallet, &r.EvaluatedAt, &power, &accounts); err != nil {
			return nil, fmt.Errorf("scan power history row: %w", err)
		}
		r.TotalPower = power
		r.AccountsScanned = int(accounts)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate power history rows: %w", err)
	}
	return result, nil
}
