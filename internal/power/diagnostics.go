package power

import "fmt"

const maxDiagnosticMessages = 100

// Diagnostics aggregates recoverable per-account and per-slot problems of
// one computation.
type Diagnostics struct {
	AccountsTotal            int `json:"accountsTotal"`
	DuplicateAccounts        int `json:"duplicateAccounts"`
	VotersDecoded            int `json:"votersDecoded"`
	RegistrarsSeen           int `json:"registrarsSeen"`
	UnknownAccounts          int `json:"unknownAccounts"`
	DecodeErrors             int `json:"decodeErrors"`
	ClassificationMismatches int `json:"classificationMismatches"`
	OwnerMismatches          int `json:"ownerMismatches"`
	RegistrarMismatches      int `json:"registrarMismatches"`
	PhantomsDropped          int `json:"phantomsDropped"`
	ZeroAmountSkipped        int `json:"zeroAmountSkipped"`
	OtherMintSkipped         int `json:"otherMintSkipped"`
	DuplicatesDropped        int `json:"duplicatesDropped"`

	Messages []string `json:"messages,omitempty"`
}

func (d *Diagnostics) addf(format string, args ...any) {
	if len(d.Messages) >= maxDiagnosticMessages {
		return
	}
	d.Messages = append(d.Messages, fmt.Sprintf(format, args...))
}

// merge folds per-member counters into d.
func (d *Diagnostics) merge(m memberDiagnostics) {
	d.PhantomsDropped += m.phantoms
	d.ZeroAmountSkipped += m.zeroAmounts
	d.OtherMintSkipped += m.otherMints
	d.DuplicatesDropped += m.duplicates
}

type memberDiagnostics struct {
	phantoms    int
	zeroAmounts int
	otherMints  int
	duplicates  int
}
