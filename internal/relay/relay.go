package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"weigh_station/internal/config"
	"weigh_station/internal/events"
	"weigh_station/internal/logger"
)

const (
	defaultTopicPrefix = "weighstation"
	connectTimeout     = 10 * time.Second
	disconnectWaitMs   = 250
)

// Relay mirrors pipeline events onto an MQTT broker so dashboards away from
// the station can follow the line. The bus is the source either way; a slow
// or absent broker never blocks acquisition.
type Relay struct {
	client mqtt.Client
	store  *config.Store
	bus    *events.Bus
	log    *logger.Logger
}

// New connects to the configured broker. Callers skip construction entirely
// when mqtt.broker is empty.
func New(store *config.Store, bus *events.Bus, log *logger.Logger) (*Relay, error) {
	snap := store.Snapshot()
	log = log.Named("relay")

	clientID := snap.MQTT.ClientID
	if clientID == "" {
		clientID = "weigh-station-" + snap.Device.DeviceNo
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(snap.MQTT.Broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Infow("broker connected", "broker", snap.MQTT.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnw("broker connection lost", "err", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker: %w", token.Error())
	}

	return &Relay{client: client, store: store, bus: bus, log: log}, nil
}

// Run forwards bus events until ctx is canceled.
func (r *Relay) Run(ctx context.Context) {
	ch, cancel := r.bus.Subscribe(64)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-ch:
			r.publish(evt)
		}
	}
}

// Close flushes in-flight messages and drops the connection.
func (r *Relay) Close() {
	r.client.Disconnect(disconnectWaitMs)
}

func (r *Relay) publish(evt events.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		r.log.Errorw("marshal event", "type", evt.Type, "err", err)
		return
	}

	snap := r.store.Snapshot()
	topic := topicFor(snap.MQTT.TopicPrefix, snap.Device.DeviceNo, evt.Type)
	token := r.client.Publish(topic, qosFor(evt.Type), false, payload)
	if token.Wait() && token.Error() != nil {
		r.log.Warnw("publish failed", "topic", topic, "err", token.Error())
	}
}

func topicFor(prefix, deviceNo string, t events.Type) string {
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return prefix + "/" + deviceNo + "/" + string(t)
}

// qosFor keeps the reading firehose cheap and the rare lifecycle messages
// reliable.
func qosFor(t events.Type) byte {
	switch t {
	case events.TypeUpload, events.TypeConnection:
		return 1
	default:
		return 0
	}
}
