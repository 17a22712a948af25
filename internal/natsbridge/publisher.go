package natsbridge

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Iron-Ham/seda/internal/errors"
	"github.com/Iron-Ham/seda/internal/seda"
)

// RejectPublisherStage is the stage name RegisterRejectPublisher uses.
const RejectPublisherStage = "nats.rejects"

// Headers set on every published rejection.
const (
	HeaderRejectType  = "Seda-Reject-Type"
	HeaderMessageType = "Seda-Message-Type"
)

// RejectRecord is the JSON body published for each rejection.
type RejectRecord struct {
	Type        string          `json:"type"`
	Reason      string          `json:"reason,omitempty"`
	MessageType string          `json:"message_type"`
	Message     json.RawMessage `json:"message,omitempty"`
	Time        time.Time       `json:"time"`
}

// RejectPublisher publishes reject messages to a NATS subject. It is a
// seda.Processor for *seda.RejectMessage.
type RejectPublisher struct {
	nc      *nats.Conn
	subject string

	published atomic.Int64
}

// NewRejectPublisher creates a publisher for subject.
func NewRejectPublisher(nc *nats.Conn, subject string) (*RejectPublisher, error) {
	switch {
	case nc == nil:
		return nil, errors.NewValidationError("nats connection is required").WithField("conn")
	case subject == "":
		return nil, errors.NewValidationError("subject cannot be empty").WithField("subject")
	}
	return &RejectPublisher{nc: nc, subject: subject}, nil
}

// Process publishes r. A failed publish is returned as an error; the stage
// logs it and, since r is itself a reject message, discards it.
func (p *RejectPublisher) Process(r *seda.RejectMessage, _ *seda.Dispatcher) error {
	rec := NewRejectRecord(r)
	body, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode reject")
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = body
	msg.Header.Set(HeaderRejectType, rec.Type)
	msg.Header.Set(HeaderMessageType, rec.MessageType)
	if err := p.nc.PublishMsg(msg); err != nil {
		return errors.Wrapf(err, "publish reject to %s", p.subject)
	}
	p.published.Add(1)
	return nil
}

// Published returns the number of rejections published.
func (p *RejectPublisher) Published() int64 { return p.published.Load() }

// NewRejectRecord describes r for publishing. The rejected message is
// included as JSON when it can be encoded.
func NewRejectRecord(r *seda.RejectMessage) RejectRecord {
	rec := RejectRecord{
		Type:        r.Type().String(),
		MessageType: seda.TypeName(r.Rejected()),
		Time:        time.Now().UTC(),
	}

	switch info := r.Info().(type) {
	case nil:
	case error:
		rec.Reason = info.Error()
	case interface{ Name() string }:
		rec.Reason = info.Name()
	default:
		rec.Reason = fmt.Sprint(info)
	}

	if body, err := json.Marshal(r.Rejected()); err == nil {
		rec.Message = body
	}
	return rec
}

// RegisterRejectPublisher creates a stage named RejectPublisherStage that
// publishes every reject message it receives to subject, and registers it
// with d. Route rejections to it with a forwarding reject stage or
// seda.WithRejectRoute.
func RegisterRejectPublisher(d *seda.Dispatcher, nc *nats.Conn, subject string, opts ...seda.Option) (*RejectPublisher, *seda.Stage[*seda.RejectMessage], error) {
	pub, err := NewRejectPublisher(nc, subject)
	if err != nil {
		return nil, nil, err
	}
	stage, err := seda.NewStage[*seda.RejectMessage](RejectPublisherStage, d, pub, opts...)
	if err != nil {
		return nil, nil, err
	}
	d.Register(stage)
	return pub, stage, nil
}
