package prometheus

import (
	"net/http"
	"testing"
	"time"

	"github.com/marmos91/fseditor/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditorMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEditorMetricsWith(reg)

	m.RecordRequest("read", http.StatusOK, 3*time.Millisecond)
	m.RecordRequest("read", http.StatusOK, 5*time.Millisecond)
	m.RecordRequest("delete", http.StatusNotFound, time.Millisecond)
	m.RecordBytesTransferred(metrics.DirectionWrite, 4096)
	m.RecordUploadStarted()
	m.RecordUploadFinished(metrics.UploadAborted)
	m.SetActiveUploads(2)

	impl := m.(*editorMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(impl.requestsTotal.WithLabelValues("read", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.requestsTotal.WithLabelValues("delete", "404")))
	assert.Equal(t, 4096.0, testutil.ToFloat64(impl.bytesTransferred.WithLabelValues("write")))
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.uploadsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.uploadsFinished.WithLabelValues("aborted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(impl.activeUploads))
}

func TestNewEditorMetrics_DisabledIsNoop(t *testing.T) {
	if metrics.IsEnabled() {
		t.Skip("global registry already initialized")
	}
	m := NewEditorMetrics()
	_, isProm := m.(*editorMetrics)
	assert.False(t, isProm)
}

func TestRegisterDeviceInfo(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterDeviceInfoWith(reg, "CCDDEEFF", "memory")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "fseditor_device_info", families[0].GetName())

	labels := map[string]string{}
	for _, l := range families[0].GetMetric()[0].GetLabel() {
		labels[l.GetName()] = l.GetValue()
	}
	assert.Equal(t, "CCDDEEFF", labels["chip_id"])
	assert.Equal(t, "memory", labels["backend"])
}
