package flightlog

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MQTT parameters
const (
	QoS     = 1
	Retain  = false
	timeout = 5 * time.Second
)

type message struct {
	MessageID string `json:"message_id"`
	Device    string `json:"device"`
	Frame
}

// Publisher streams frames to an MQTT broker as they are recorded.
type Publisher struct {
	client mqtt.Client
	topic  string
	device string

	mu sync.Mutex
	// failed holds the first delivery error not yet reported by Publish.
	failed error
}

// Dial connects to broker (e.g. tcp://localhost:1883) and returns a publisher
// writing to /devices/<device>/events/<topic>.
func Dial(broker, device, topic string) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("nova-letter-%s-%s", device, uuid.New().String()[:8])).
		SetProtocolVersion(4) // Use MQTT 3.1.1

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(timeout) {
		return nil, errors.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := tok.Error(); err != nil {
		return nil, errors.Wrap(err, "mqtt connect")
	}
	return NewPublisher(client, device, topic), nil
}

func NewPublisher(client mqtt.Client, device, topic string) *Publisher {
	return &Publisher{
		client: client,
		topic:  fmt.Sprintf("/devices/%s/events/%s", device, topic),
		device: device,
	}
}

func (p *Publisher) Topic() string {
	return p.topic
}

func (p *Publisher) Publish(f Frame) error {
	b, err := json.Marshal(message{
		MessageID: uuid.New().String(),
		Device:    p.device,
		Frame:     f,
	})
	if err != nil {
		return errors.Wrap(err, "encode frame")
	}
	// deliveries are acknowledged in the background, a failure is returned
	// by the next call
	if tok := p.client.Publish(p.topic, QoS, Retain, b); tok != nil {
		go p.await(tok)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err, p.failed = p.failed, nil
	return err
}

func (p *Publisher) await(tok mqtt.Token) {
	var err error
	if !tok.WaitTimeout(timeout) {
		err = errors.Errorf("mqtt publish to %s timed out", p.topic)
	} else if tok.Error() != nil {
		err = errors.Wrap(tok.Error(), "mqtt publish")
	}
	if err == nil {
		return
	}
	p.mu.Lock()
	if p.failed == nil {
		p.failed = err
	}
	p.mu.Unlock()
}

func (p *Publisher) Close() {
	p.client.Disconnect(1000)
}
