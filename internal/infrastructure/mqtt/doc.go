// Package mqtt provides the MQTT client used to mirror the thing's properties
// onto a broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after every reconnect
//   - Last Will and Testament (LWT) on servomount/system/status
//   - Connection health for /health
//
// # Topics
//
//	servomount/state/{thing}/{property}    retained accepted value
//	servomount/command/{thing}/{property}  requested write
//	servomount/ack/{thing}/{property}      command outcome
//	servomount/health/{thing}              periodic bus health
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands("camera-mount"), 1,
//	    func(topic string, payload []byte) error {
//	        return apply(mqtt.PropertyFromTopic(topic), payload)
//	    })
package mqtt
