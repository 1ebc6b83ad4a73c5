package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTransition records a completed mode transition.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - fromMode: Mode the camera left (e.g., "scanner")
//   - toMode: Mode the camera entered (e.g., "product-photo")
//   - owner: Screen that requested the transition
//   - durationMS: Wall-clock transition time in milliseconds
//   - needsReset: Whether the transition flagged a follow-up scanner reset
//
// Example:
//
//	client.WriteTransition("scanner", "product-photo", "ProductPhotoScreen", 742, false)
func (c *Client) WriteTransition(fromMode, toMode, owner string, durationMS int64, needsReset bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"mode_transitions",
		map[string]string{
			"from_mode": fromMode,
			"to_mode":   toMode,
			"owner":     owner,
		},
		map[string]interface{}{
			"duration_ms": durationMS,
			"needs_reset": needsReset,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteReset records a camera reset event.
//
// Parameters:
//   - fromMode: Mode before the reset sequence
//   - reason: Why the reset ran (e.g., "photo_workflow_complete", "degraded_scanning")
//   - tier: Recovery tier that ran (1 or 2)
//   - durationMS: Total reset sequence time in milliseconds
func (c *Client) WriteReset(fromMode, reason string, tier int, durationMS int64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"camera_resets",
		map[string]string{
			"from_mode": fromMode,
			"reason":    reason,
		},
		map[string]interface{}{
			"tier":        tier,
			"duration_ms": durationMS,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteScanRate records scanner throughput for degradation analysis.
//
// Parameters:
//   - scans: Number of successful barcode detections in the window
//   - windowSeconds: Length of the observation window
func (c *Client) WriteScanRate(scans int, windowSeconds int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"scan_rate",
		map[string]string{
			"mode": "scanner",
		},
		map[string]interface{}{
			"scans":          scans,
			"window_seconds": windowSeconds,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
