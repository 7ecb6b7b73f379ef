package observability

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	logs "github.com/danmuck/libquassel/internal/logging"
	"github.com/danmuck/libquassel/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordFrame("datastream", "in", "initdata", 128)
	RecordProtocolWarning("datastream", "list_not_numeric")
	RecordTLSUpgrade("legacy", true)
	RecordHeartbeatRTT("legacy", 12*time.Millisecond)
	RecordDispatch("sync", "BufferViewConfig", true)

	logs.Logf("observability/metrics: registration idempotent and recording paths executed")
}

func TestRecordFrameCountsBytes(t *testing.T) {
	before := counterValue(t, "legacy", "out")
	RecordFrame("legacy", "out", "struct", 10)
	RecordFrame("legacy", "out", "struct", 5)
	after := counterValue(t, "legacy", "out")
	if after-before != 15 {
		t.Fatalf("expected 15 bytes recorded, got %v", after-before)
	}
}

func counterValue(t *testing.T, protocol, direction string) float64 {
	t.Helper()
	var m dto.Metric
	if err := frameBytes.WithLabelValues(protocol, direction).Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
