package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestExchangeMetrics(t *testing.T) {
	m := Exchange()
	require.Same(t, m, Exchange())

	before := testutil.ToFloat64(m.operations.WithLabelValues("swap", "error"))
	m.Observe("swap", errors.New("boom"), time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(m.operations.WithLabelValues("swap", "error")))

	m.RecordSwap("5000")
	require.GreaterOrEqual(t, testutil.ToFloat64(m.swapped.WithLabelValues("5000")), 1.0)
}

func TestRPCMetrics(t *testing.T) {
	m := RPC()
	before := testutil.ToFloat64(m.errors.WithLabelValues("exchange_getRate", "-32602"))
	m.Observe("exchange_getRate", -32602, time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(m.errors.WithLabelValues("exchange_getRate", "-32602")))

	m.RecordThrottle("")
	require.GreaterOrEqual(t, testutil.ToFloat64(m.throttles.WithLabelValues("unspecified")), 1.0)

	var nilMetrics *rpcMetrics
	nilMetrics.Observe("x", 0, 0)
}

func TestEventMetrics(t *testing.T) {
	m := Events()
	before := testutil.ToFloat64(m.emitted.WithLabelValues("swap.swapped"))
	m.RecordEvent(" Swap.Swapped ")
	require.Equal(t, before+1, testutil.ToFloat64(m.emitted.WithLabelValues("swap.swapped")))
}
