// Package mqtt is the agent's broker link to the cloud controller.
//
// Each device owns a topic subtree scoped by its device ID (see Topics).
// The client auto-reconnects with backoff, replays tracked subscriptions
// after every reconnect, and announces presence on the system status topic:
// a retained online message on connect, a graceful offline message on
// Close, and a broker-published LWT when the agent dies unexpectedly.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, "dev-42")
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().CommandInbox(), 1,
//	    func(topic string, payload []byte) error {
//	        return dispatch(payload)
//	    })
//
//	client.Publish(client.Topics().StateDelta(), payload, 1, false)
//
// # Thread Safety
//
// All Client methods are safe for concurrent use. Message handlers run on
// paho's goroutines; the client wraps them with panic recovery.
package mqtt
