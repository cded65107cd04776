package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementEndpointDispatch is the measurement for per-endpoint dispatch
// timings.
const MeasurementEndpointDispatch = "endpoint_dispatch"

// WriteEndpointDispatch records one endpoint's part of a dispatch, tagged by
// endpoint and kind with duration_ms and success fields.
func (c *Client) WriteEndpointDispatch(endpoint, kind string, duration time.Duration, ok bool) {
	c.WritePoint(MeasurementEndpointDispatch,
		map[string]string{
			"endpoint": endpoint,
			"kind":     kind,
		},
		map[string]any{
			"duration_ms": duration.Milliseconds(),
			"success":     ok,
		},
		time.Now(),
	)
}

// WritePoint queues a point. It is dropped when the client is closed.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
