// Package mqtt provides the service's MQTT client.
//
// Sensors publish readings to <prefix>/sensors/<sensorId>; the service
// publishes device commands to <prefix>/command/<deviceId> and listens for
// acknowledgements on <prefix>/ack/<deviceId>. The broker is either an
// external one (Mosquitto) or the embedded broker from package broker.
//
// The client reconnects automatically, replays its subscriptions after a
// reconnect and keeps a retained status message on <prefix>/system/status,
// with a Last Will so subscribers see "offline" if the process dies.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllSensors(), 1,
//	    func(topic string, payload []byte) error {
//	        return ingestor.HandleMessage(topic, payload)
//	    })
package mqtt
