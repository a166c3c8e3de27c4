package reporting

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTopN is the number of leaderboard rows in the markdown summary.
const DefaultTopN = 25

// RenderMarkdown renders report as Markdown string. topN <= 0 uses DefaultTopN.
func RenderMarkdown(r *Report, topN int) string {
	if topN <= 0 {
		topN = DefaultTopN
	}
	var sb strings.Builder

	// Header
	sb.WriteString("# Voting Power Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Snapshot | %s |\n", r.Summary.SnapshotID))
	sb.WriteString(fmt.Sprintf("| Registrar | %s |\n", r.Summary.Registrar))
	if r.Summary.GoverningMint != "" {
		sb.WriteString(fmt.Sprintf("| Governing Mint | %s |\n", r.Summary.GoverningMint))
	}
	sb.WriteString(fmt.Sprintf("| Evaluated At | %s |\n", time.Unix(r.Summary.EvaluatedAt, 0).UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("| Accounts | %d |\n", r.Summary.AccountsTotal))
	sb.WriteString(fmt.Sprintf("| Members | %d |\n", r.Summary.MembersTotal))
	sb.WriteString(fmt.Sprintf("| Total Power | %s |\n", r.Summary.TotalPower))
	sb.WriteString("\n")

	// Leaderboard
	sb.WriteString("## Leaderboard\n\n")
	if len(r.Members) > 0 {
		sb.WriteString("| Rank | Wallet | Power | Deposits | Accounts |\n")
		sb.WriteString("|------|--------|-------|----------|----------|\n")
		for i, m := range r.Members {
			if i >= topN {
				break
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %d | %d |\n",
				i+1, m.Wallet, m.TotalPower, len(m.Deposits), m.AccountsScanned))
		}
		if len(r.Members) > topN {
			sb.WriteString(fmt.Sprintf("\n%d more members not shown.\n", len(r.Members)-topN))
		}
	} else {
		sb.WriteString("No members with voting power.\n")
	}
	sb.WriteString("\n")

	// Diagnostics
	if d := r.Diagnostics; d != nil {
		sb.WriteString("## Diagnostics\n\n")
		sb.WriteString("| Counter | Value |\n")
		sb.WriteString("|---------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Voters Decoded | %d |\n", d.VotersDecoded))
		sb.WriteString(fmt.Sprintf("| Registrars Seen | %d |\n", d.RegistrarsSeen))
		sb.WriteString(fmt.Sprintf("| Unknown Accounts | %d |\n", d.UnknownAccounts))
		sb.WriteString(fmt.Sprintf("| Duplicate Accounts | %d |\n", d.DuplicateAccounts))
		sb.WriteString(fmt.Sprintf("| Decode Errors | %d |\n", d.DecodeErrors))
		sb.WriteString(fmt.Sprintf("| Classification Mismatches | %d |\n", d.ClassificationMismatches))
		sb.WriteString(fmt.Sprintf("| Owner Mismatches | %d |\n", d.OwnerMismatches))
		sb.WriteString(fmt.Sprintf("| Registrar Mismatches | %d |\n", d.RegistrarMismatches))
		sb.WriteString(fmt.Sprintf("| Phantoms Dropped | %d |\n", d.PhantomsDropped))
		sb.WriteString(fmt.Sprintf("| Zero Amounts Skipped | %d |\n", d.ZeroAmountSkipped))
		sb.WriteString(fmt.Sprintf("| Other Mint Skipped | %d |\n", d.OtherMintSkipped))
		sb.WriteString(fmt.Sprintf("| Duplicate Deposits Dropped | %d |\n", d.DuplicatesDropped))
		sb.WriteString("\n")

		if len(d.Messages) > 0 {
			sb.WriteString("### Messages\n\n")
			for _, msg := range d.Messages {
				sb.WriteString(fmt.Sprintf("- %s\n", msg))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
