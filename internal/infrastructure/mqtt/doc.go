// Package mqtt provides MQTT client connectivity for VeganLens Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// VeganLens uses MQTT to link the coordinator to the device-side capture
// surface. Commands (activate, configure, capture, focus) travel out on
// command topics; barcode detections, capture results and capturing-state
// changes come back on event topics. The broker decouples the coordinator
// from the device runtime.
//
//	VeganLens Core ↔ MQTT Broker ↔ Capture Surface
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all camera events from the surface
//	err = client.Subscribe(mqtt.Topics{}.AllCameraEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a command
//	topic := mqtt.Topics{}.CameraCommand("activate")
//	client.Publish(topic, []byte(`{"mode":"scanner"}`), 1, false)
package mqtt
