// Package influxdb provides InfluxDB connectivity for VeganLens Core.
//
// It wraps the official influxdb-client-go v2 library with VeganLens-specific
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series telemetry for:
//   - Mode transition durations and outcomes
//   - Camera reset events (tier, reason, duration)
//   - Scanner throughput (barcode scan rates)
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "veganlens",
//	    Bucket: "camera",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteTransition("scanner", "product-photo", "ProductPhotoScreen", 742, false)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
package influxdb
