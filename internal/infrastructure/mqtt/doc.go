// Package mqtt provides the broker connection used by the luxbridge service.
//
// This package manages:
//   - Connection to the broker: refused first attempts are reported and
//     retried at a fixed interval, later drops use library auto-reconnect
//   - Ordered, sequential delivery of inbound messages
//   - Blocking and fire-and-forget publishing
//   - Subscription tracking and restoration after reconnect
//   - Last Will and Testament (LWT) on the bridge status topic
//   - Connect result codes mapped from CONNACK return codes
//
// # Topic Layout
//
// All topics live under a per-device namespace:
//
//	id/<device>/dht/temp       temperature readings (inbound)
//	id/<device>/dht/humi       humidity readings (inbound)
//	id/<device>/light/lux      light readings (inbound)
//	id/<device>/light/control  "up" / "down" commands (outbound)
//	id/<device>/bridge/status  retained online/offline status
//
// # Usage
//
//	topics := mqtt.ResolveTopics(cfg.Topics)
//	client := mqtt.New(cfg.MQTT, topics.Status)
//	defer client.Close()
//
//	client.SetOnConnect(func(r mqtt.ConnectResult) {
//	    if !r.Accepted() {
//	        log.Printf("refused: %s", r)
//	        return
//	    }
//	    client.Subscribe(topics.Light, 0, handler)
//	})
//	client.Start(ctx)
//
// Inbound handlers run on the library's delivery goroutine one at a time.
// A handler must never wait on a publish token; use PublishAsync instead.
package mqtt
