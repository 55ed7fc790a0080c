// Package mqtt is the daemon's MQTT client: broker connectivity,
// publishing, subscriptions and the topic layout under a configurable
// base topic.
//
// # Topic layout
//
// Everything lives under {base} (default "domobridge"):
//
//	{base}/element/{id}/state    retained, normalized element state
//	{base}/element/{id}/set      inbound commands
//	{base}/bridge/status         retained availability (online/offline)
//	{base}/bridge/cycle          poll cycle summaries
//	{base}/bridge/refresh        on-demand poll trigger
//
// Element ids in topics use "_" where the panel uses "/", since "/" is
// the MQTT level separator; see EncodeElementID.
//
// # Behaviour
//
// Connect registers a retained Last Will on the status topic, so a
// crashed bridge flips to "offline" without any action on our part; a
// clean Close publishes its own offline message with a different
// reason. Subscriptions are tracked and replayed after reconnects, and
// every handler runs behind panic recovery. Publishes wait for the
// broker ack with a bounded timeout.
//
// Auth and TLS come from config.yaml. Plain tcp with no credentials is
// only meant for a broker on localhost.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllElementSets(), 1,
//	    func(topic string, payload []byte) error {
//	        return dispatch(topic, payload)
//	    })
//
//	client.PublishRetained(client.Topics().ElementState("72623/119"),
//	    []byte(`{"is_on":true}`))
package mqtt
