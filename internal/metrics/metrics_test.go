package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOperation("save", time.Now(), nil)
	m.ObserveOperation("save", time.Now(), errors.New("x"))
	m.ExportQueued("pdf")
	m.ExportProcessed("pdf", "completed", time.Second)
	m.ExportsRemoved(3)
	m.ShareResolved("ok")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("save", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("save", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportsQueued.WithLabelValues("pdf")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ExportsCleaned))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("save", time.Now(), nil)
		m.ValidationFailed()
		m.NoopSave()
		m.ExportQueued("pdf")
		m.ExportProcessed("pdf", "failed", 0)
		m.ExportsRemoved(1)
		m.ShareResolved("expired")
	})
}
