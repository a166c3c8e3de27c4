package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders the leaderboard as CSV string.
func RenderCSV(members []MemberOutput) string {
	var sb strings.Builder

	sb.WriteString("rank,wallet,total_power,deposits,accounts_scanned\n")

	for i, m := range members {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%d,%d\n",
			i+1,
			m.Wallet,
			m.TotalPower,
			len(m.Deposits),
			m.AccountsScanned,
		))
	}

	return sb.String()
}

// RenderDepositsCSV renders every contribution as CSV string.
func RenderDepositsCSV(members []MemberOutput) string {
	var sb strings.Builder

	sb.WriteString("wallet,source_account,slot_index,lockup_kind,start_ts,end_ts,amount,multiplier,power\n")

	for _, m := range members {
		for _, d := range m.Deposits {
			sb.WriteString(fmt.Sprintf("%s,%s,%d,%s,%d,%d,%s,%s,%s\n",
				m.Wallet,
				d.SourceAccount,
				d.SlotIndex,
				d.LockupKind,
				d.StartTs,
				d.EndTs,
				d.Amount,
				d.Multiplier,
				d.Power,
			))
		}
	}

	return sb.String()
}
