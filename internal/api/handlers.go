package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/observability"
	"vsr-power-lab/internal/orchestrator"
	"vsr-power-lab/internal/power"
	"vsr-power-lab/internal/reporting"
	"vsr-power-lab/internal/storage"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the /status body.
type StatusResponse struct {
	Registrar      string `json:"registrar"`
	Runs           int64  `json:"runs"`
	Failures       int64  `json:"failures"`
	LastError      string `json:"lastError,omitempty"`
	LastSnapshotID string `json:"lastSnapshotId,omitempty"`
	LastSlot       int64  `json:"lastSlot,omitempty"`
	LastEvaluated  int64  `json:"lastEvaluatedAt,omitempty"`
	LastFinished   string `json:"lastFinishedAt,omitempty"`
	Members        int    `json:"members"`
	TotalPower     string `json:"totalPower,omitempty"`
}

// RecalculateResponse is the POST /api/recalculate body.
type RecalculateResponse struct {
	RunID       string            `json:"runId"`
	SnapshotID  string            `json:"snapshotId"`
	EvaluatedAt int64             `json:"evaluatedAt"`
	Members     int               `json:"members"`
	TotalPower  string            `json:"totalPower"`
	Persisted   bool              `json:"persisted"`
	Diagnostics power.Diagnostics `json:"diagnostics"`
}

// HistoryPoint is one entry of a wallet's power history.
type HistoryPoint struct {
	SnapshotID  string `json:"snapshotId"`
	EvaluatedAt int64  `json:"evaluatedAt"`
	TotalPower  string `json:"totalPower"`
}

// SnapshotSummary is one entry of the snapshot list.
type SnapshotSummary struct {
	SnapshotID    string `json:"snapshotId"`
	EvaluatedAt   int64  `json:"evaluatedAt"`
	AccountsTotal int    `json:"accountsTotal"`
	MembersTotal  int    `json:"membersTotal"`
	TotalPower    string `json:"totalPower"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.cfg.Recalculator.Status()
	resp := StatusResponse{
		Registrar: s.cfg.Registrar,
		Runs:      st.Runs,
		Failures:  st.Failures,
		LastError: st.LastError,
	}
	if last := st.LastRun; last != nil {
		resp.LastSnapshotID = last.SnapshotID
		resp.LastSlot = last.Slot
		resp.LastEvaluated = last.Report.EvaluatedAt
		resp.LastFinished = last.FinishedAt.UTC().Format(time.RFC3339)
		resp.Members = len(last.Report.Results)
		resp.TotalPower = reporting.FormatDecimal(last.Report.TotalPower())
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLeaderboard serves the latest snapshot as JSON, CSV or markdown.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, ok := s.latestSnapshot(w, r)
	if !ok {
		return
	}

	report, err := s.gen.FromSnapshot(ctx, snap.SnapshotID)
	if err != nil {
		s.log.Error("api: build report", "snapshot_id", snap.SnapshotID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if limit > 0 && limit < len(report.Members) {
			report.Members = report.Members[:limit]
		}
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "json":
		observability.RecordReport("json")
		writeJSON(w, http.StatusOK, report)
	case "csv":
		observability.RecordReport("csv")
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = w.Write([]byte(reporting.RenderCSV(report.Members)))
	case "markdown", "md":
		observability.RecordReport("markdown")
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(reporting.RenderMarkdown(report, len(report.Members))))
	default:
		writeError(w, http.StatusBadRequest, "unsupported format "+strconv.Quote(format))
	}
}

// handleMemberPower serves one member of the latest snapshot. Alias wallets
// resolve to their primary; wallets without voter accounts get zero power.
func (s *Server) handleMemberPower(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, ok := s.walletParam(w, r)
	if !ok {
		return
	}
	snap, ok := s.latestSnapshot(w, r)
	if !ok {
		return
	}

	rec, err := s.cfg.MemberStore.GetMember(ctx, snap.SnapshotID, wallet)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusOK, reporting.MemberOutput{
			Wallet:     wallet,
			TotalPower: reporting.FormatDecimal(decimal.Zero),
			Deposits:   []reporting.DepositOutput{},
		})
		return
	}
	if err != nil {
		s.log.Error("api: get member", "wallet", wallet, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load member")
		return
	}

	contribs, err := s.cfg.MemberStore.GetContributions(ctx, snap.SnapshotID, wallet)
	if err != nil {
		s.log.Error("api: get contributions", "wallet", wallet, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load deposits")
		return
	}
	writeJSON(w, http.StatusOK, reporting.MemberFromRecords(rec, contribs))
}

// handleMemberHistory serves a wallet's power over time. Query parameters
// from and to are unix seconds; the default window is the last 30 days.
func (s *Server) handleMemberHistory(w http.ResponseWriter, r *http.Request) {
	if s.cfg.HistoryStore == nil {
		writeError(w, http.StatusNotFound, "history not enabled")
		return
	}
	wallet, ok := s.walletParam(w, r)
	if !ok {
		return
	}

	end := s.cfg.Clock().Unix()
	start := end - 30*86400
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if start, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from")
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if end, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to")
			return
		}
	}
	if start > end {
		writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	records, err := s.cfg.HistoryStore.GetByWallet(r.Context(), s.cfg.Registrar, wallet, start, end)
	if err != nil {
		s.log.Error("api: get history", "wallet", wallet, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	points := make([]HistoryPoint, 0, len(records))
	for _, rec := range records {
		points = append(points, HistoryPoint{
			SnapshotID:  rec.SnapshotID,
			EvaluatedAt: rec.EvaluatedAt,
			TotalPower:  reporting.FormatDecimal(rec.TotalPower),
		})
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, 500)
	}

	snaps, err := s.cfg.SnapshotStore.List(r.Context(), s.cfg.Registrar, limit)
	if err != nil {
		s.log.Error("api: list snapshots", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}

	out := make([]SnapshotSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, SnapshotSummary{
			SnapshotID:    snap.SnapshotID,
			EvaluatedAt:   snap.EvaluatedAt,
			AccountsTotal: snap.AccountsTotal,
			MembersTotal:  snap.MembersTotal,
			TotalPower:    reporting.FormatDecimal(snap.TotalPower),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	res, err := s.cfg.Recalculator.Run(r.Context(), orchestrator.TriggerAPI)
	if err != nil {
		s.log.Error("api: recalculate", "error", err)
		writeError(w, http.StatusInternalServerError, "recalculation failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RecalculateResponse{
		RunID:       res.RunID,
		SnapshotID:  res.SnapshotID,
		EvaluatedAt: res.Report.EvaluatedAt,
		Members:     len(res.Report.Results),
		TotalPower:  reporting.FormatDecimal(res.Report.TotalPower()),
		Persisted:   res.Persisted,
		Diagnostics: res.Report.Diagnostics,
	})
}

// walletParam parses {wallet} and canonicalizes aliases.
func (s *Server) walletParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	pk, err := domain.ParsePubKey(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return "", false
	}
	return s.cfg.Aliases.Resolve(pk).String(), true
}

func (s *Server) latestSnapshot(w http.ResponseWriter, r *http.Request) (*domain.PowerSnapshot, bool) {
	snap, err := s.cfg.SnapshotStore.Latest(r.Context(), s.cfg.Registrar)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusServiceUnavailable, "no snapshot computed yet")
		return nil, false
	}
	if err != nil {
		s.log.Error("api: latest snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return nil, false
	}
	return snap, true
}
