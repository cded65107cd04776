// Package mqtt connects the service to an MQTT broker.
//
// MQTT is an optional side channel: selections arrive on
// <prefix>/select (a {"source": "group|leaf"} object or the bare address),
// finished executions are published on <prefix>/event/dispatch, and a
// retained online/offline status with a Last Will lives on
// <prefix>/system/status. The prefix defaults to "videoroute".
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	err = client.Subscribe(client.Topics().Select(), 1, handler)
package mqtt
