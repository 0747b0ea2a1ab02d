package mqtt

import (
	"fmt"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/sdb.go/pkg/telemetry"
)

// AppID scopes the machine id derived for topics.
const AppID = "sdb.go"

// Publishing is the publish side of a Queue.
type Publishing interface {
	Pub(topic string, payload []byte) paho.Token
}

// Publisher implements telemetry.Reporter, publishing each event to
// sdb/<device>/<session>/<kind>.
type Publisher struct {
	Queue  Publishing
	Device string
}

// DeviceID returns a stable id of this machine, or "unknown".
func DeviceID() string {
	id, err := machineid.ProtectedID(AppID)
	if err != nil {
		glog.Warningf("machine id: %v", err)
		return "unknown"
	}
	if len(id) > 16 {
		id = id[:16]
	}
	return id
}

// NewPublisher creates a Publisher for this machine.
func NewPublisher(q Publishing) *Publisher {
	return &Publisher{Queue: q, Device: DeviceID()}
}

// Topic returns the topic of an event.
func (p *Publisher) Topic(e *telemetry.Event) string {
	return strings.Join([]string{"sdb", p.Device, e.Session, e.Kind}, "/")
}

// Report implements telemetry.Reporter. It does not wait for delivery.
func (p *Publisher) Report(e *telemetry.Event) {
	payload, err := e.Marshal()
	if err != nil {
		glog.Errorf("telemetry encode %s: %v", e.Kind, err)
		return
	}
	p.Queue.Pub(p.Topic(e), payload)
}

// Dial connects to the broker at brokerURL and creates a Publisher
// over the connection.
func Dial(brokerURL string, timeout time.Duration) (*Queue, *Publisher, error) {
	q, err := NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, nil, err
	}
	token := q.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, nil, fmt.Errorf("connect %s: no answer within %s", brokerURL, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, nil, err
	}
	return q, NewPublisher(q), nil
}
