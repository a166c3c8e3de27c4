// Package multiplier computes the lockup vote weight multiplier of a deposit.
package multiplier

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"vsr-power-lab/internal/domain"
)

// ConfigError reports a registrar configuration that cannot drive the
// multiplier math.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid registrar config: " + strings.Join(e.Problems, "; ")
}

// Validate checks cfg. All multiplier math depends on it, so callers abort
// the run on error.
func Validate(cfg domain.RegistrarConfig) error {
	var problems []string
	if cfg.LockupSaturationSecs == 0 {
		problems = append(problems, "lockup saturation secs must be > 0")
	}
	if cfg.BaselineVoteWeight.IsNegative() {
		problems = append(problems, fmt.Sprintf("baseline vote weight %s is negative", cfg.BaselineVoteWeight))
	}
	if cfg.MaxExtraLockupVoteWeight.IsNegative() {
		problems = append(problems, fmt.Sprintf("max extra lockup vote weight %s is negative", cfg.MaxExtraLockupVoteWeight))
	}
	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// Multiplier returns baseline + bonus for lockup evaluated at now.
// cfg must have passed Validate. The result never falls below baseline.
func Multiplier(lockup domain.Lockup, now int64, cfg domain.RegistrarConfig) decimal.Decimal {
	locked := LockedSecs(lockup, now, cfg.LockupSaturationSecs)
	if locked == 0 {
		return cfg.BaselineVoteWeight
	}
	bonus := cfg.MaxExtraLockupVoteWeight.
		Mul(decimal.NewFromUint64(locked)).
		Div(decimal.NewFromUint64(cfg.LockupSaturationSecs))
	return cfg.BaselineVoteWeight.Add(bonus)
}

// LockedSecs returns the number of seconds that count towards the bonus,
// capped at saturation.
//
// Cliff and Monthly count time remaining until end. Constant and Vesting
// count the still-locked share of the full duration.
func LockedSecs(lockup domain.Lockup, now int64, saturation uint64) uint64 {
	if lockup.EndTs <= now {
		return 0
	}

	var locked int64
	switch lockup.Kind {
	case domain.LockupCliff, domain.LockupMonthly:
		locked = satSub(lockup.EndTs, now)
	case domain.LockupConstant, domain.LockupVesting:
		// duration - elapsed, which is end - now once the lockup has started.
		if now < lockup.StartTs {
			locked = max(1, satSub(lockup.EndTs, lockup.StartTs))
		} else {
			locked = satSub(lockup.EndTs, now)
		}
	default:
		return 0
	}

	if locked <= 0 {
		return 0
	}
	return min(uint64(locked), saturation)
}

// satSub returns a - b clamped to the int64 range. On-chain timestamps are
// unvalidated i64 values.
func satSub(a, b int64) int64 {
	switch {
	case b > 0 && a < math.MinInt64+b:
		return math.MinInt64
	case b < 0 && a > math.MaxInt64+b:
		return math.MaxInt64
	}
	return a - b
}
