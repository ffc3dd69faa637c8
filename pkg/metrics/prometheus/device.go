package prometheus

import (
	"github.com/marmos91/fseditor/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RegisterDeviceInfo publishes a constant fseditor_device_info gauge set to 1
// and labelled with the device chip id and filesystem backend. It does
// nothing when metrics are disabled.
func RegisterDeviceInfo(chipID, backend string) {
	if !metrics.IsEnabled() {
		return
	}
	RegisterDeviceInfoWith(metrics.GetRegistry(), chipID, backend)
}

// RegisterDeviceInfoWith registers the device info gauge on reg.
func RegisterDeviceInfoWith(reg prometheus.Registerer, chipID, backend string) {
	promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "fseditor_device_info",
		Help: "Device identity; value is always 1",
		ConstLabels: prometheus.Labels{
			"chip_id": chipID,
			"backend": backend,
		},
	}).Set(1)
}
