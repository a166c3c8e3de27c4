package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_CustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.PhantomsDropped.Add(3)
	if got := testutil.ToFloat64(m.PhantomsDropped); got != 3 {
		t.Errorf("expected 3, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected registered metric families")
	}
}

func TestRecordScan(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.AccountsScanned.WithLabelValues("voter"))
	RecordScan(ScanStats{Voters: 5, Phantoms: 2})
	after := testutil.ToFloat64(DefaultMetrics.AccountsScanned.WithLabelValues("voter"))
	if after-before != 5 {
		t.Errorf("expected voter counter +5, got +%v", after-before)
	}
}

func TestRecordRPCLatency_Error(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.RPCCallErrors.WithLabelValues("getProgramAccounts"))
	RecordRPCLatency("getProgramAccounts", 0.1, errors.New("boom"))
	RecordRPCLatency("getProgramAccounts", 0.1, nil)
	after := testutil.ToFloat64(DefaultMetrics.RPCCallErrors.WithLabelValues("getProgramAccounts"))
	if after-before != 1 {
		t.Errorf("expected one error recorded, got %v", after-before)
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 204: "2xx", 301: "3xx", 404: "4xx", 429: "4xx", 503: "5xx"}
	for code, want := range tests {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %s, want %s", code, got, want)
		}
	}
}
