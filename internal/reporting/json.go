package reporting

import (
	"encoding/json"
	"io"
)

// RenderJSON writes the member list as an indented JSON array.
func RenderJSON(w io.Writer, members []MemberOutput) error {
	if members == nil {
		members = []MemberOutput{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(members)
}

// RenderReportJSON writes the full report as indented JSON.
func RenderReportJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
