package vsr

import "vsr-power-lab/internal/domain"

// DefaultPlaceholderAmounts are native amounts the program leaves in
// otherwise empty slots.
var DefaultPlaceholderAmounts = []uint64{1}

// PhantomFilter drops deposits that are structural placeholders.
// A deposit is phantom only when its amount is a placeholder magnitude and
// its lockup metadata is entirely zero.
type PhantomFilter struct {
	placeholders map[uint64]struct{}
}

// NewPhantomFilter creates a filter. With no amounts DefaultPlaceholderAmounts is used.
func NewPhantomFilter(amounts ...uint64) *PhantomFilter {
	if len(amounts) == 0 {
		amounts = DefaultPlaceholderAmounts
	}
	f := &PhantomFilter{placeholders: make(map[uint64]struct{}, len(amounts))}
	for _, a := range amounts {
		f.placeholders[a] = struct{}{}
	}
	return f
}

// IsPhantom reports whether d is a placeholder.
func (f *PhantomFilter) IsPhantom(d domain.DepositEntry) bool {
	if _, ok := f.placeholders[d.AmountDepositedNative]; !ok {
		return false
	}
	return d.Lockup.IsZero()
}

// Filter returns the non-phantom deposits and the number dropped.
func (f *PhantomFilter) Filter(deposits []domain.DepositEntry) ([]domain.DepositEntry, int) {
	kept := make([]domain.DepositEntry, 0, len(deposits))
	dropped := 0
	for _, d := range deposits {
		if f.IsPhantom(d) {
			dropped++
			continue
		}
		kept = append(kept, d)
	}
	return kept, dropped
}
