package natsx

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// Relay is the outbound side of the gateway's broker integration: it
// publishes realtime events (new messages, presence transitions) to rt.*
// subjects for downstream consumers such as the notification service.
type Relay struct {
	nc *nats.Conn
}

func Dial(url string) (*Relay, error) {
	nc, err := nats.Connect(url,
		nats.Name("blueprint-rt-gateway"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}
	return &Relay{nc: nc}, nil
}

// Publish marshals the payload and fires it at the subject. Fire-and-forget:
// no ack, no retry; the gateway logs failures and moves on.
func (r *Relay) Publish(subject string, payload interface{}) error {
	if r == nil || r.nc == nil {
		return errors.New("relay not initialized")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", subject)
	}
	return r.nc.Publish(subject, data)
}

func (r *Relay) Close() {
	if r != nil && r.nc != nil {
		r.nc.Close()
	}
}
