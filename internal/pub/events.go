package pub

import (
	"cartsync/internal/ports"
	"cartsync/internal/types"
	"context"
	"encoding/base64"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
)

const (
	EventCartUpdated = "cart.updated"
	EventCartCleared = "cart.cleared"
)

var enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
var dec, _ = zstd.NewReader(nil)

// CartEvent announces an acknowledged cart write. Snapshot is the full cart, JSON encoded,
// zstd compressed and base64-url encoded.
type CartEvent struct {
	Type           string `json:"type"`
	Shopper        string `json:"shopper"`
	CartID         string `json:"cartId"`
	Version        int64  `json:"version"`
	Mutation       string `json:"mutation"`
	ReplacedCartID string `json:"replacedCartId,omitempty"`
	At             int64  `json:"at"`
	Snapshot       string `json:"snapshot"`
}

// NewCartEvent builds the event for a write of mutation kind on c. prevID is the cart the mutation
// targeted.
func NewCartEvent(shopper, mutation, prevID string, c types.Cart, at time.Time) (CartEvent, error) {
	snap, err := EncodeSnapshot(c)
	if err != nil {
		return CartEvent{}, err
	}
	ev := CartEvent{
		Type:     EventCartUpdated,
		Shopper:  shopper,
		CartID:   c.ID,
		Version:  c.Version,
		Mutation: mutation,
		At:       at.Unix(),
		Snapshot: snap,
	}
	if prevID != "" && prevID != c.ID {
		ev.Type = EventCartCleared
		ev.ReplacedCartID = prevID
	}
	return ev, nil
}

// EncodeSnapshot encodes the cart as JSON, compresses and base64-url encodes it.
func EncodeSnapshot(c types.Cart) (string, error) {
	s, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	b := enc.EncodeAll(s, make([]byte, 0, len(s)))
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(in string) (types.Cart, error) {
	b, err := base64.RawURLEncoding.DecodeString(in)
	if err != nil {
		return types.Cart{}, err
	}
	out, err := dec.DecodeAll(b, nil)
	if err != nil {
		return types.Cart{}, err
	}
	var c types.Cart
	if err := json.Unmarshal(out, &c); err != nil {
		return types.Cart{}, err
	}
	return c, nil
}

// Events publishes cart events to one topic.
type Events struct {
	pub      ports.Publisher
	topicArn string
	timeout  time.Duration
}

func NewEvents(p ports.Publisher, topicArn string, timeout time.Duration) *Events {
	return &Events{pub: p, topicArn: topicArn, timeout: timeout}
}

func (e *Events) Publish(ctx context.Context, ev CartEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.pub.PublishRaw(ctx, e.topicArn, b)
}

// LogPublisher writes events to the log instead of a topic. Used when no topic is configured.
type LogPublisher struct{}

func (LogPublisher) PublishRaw(_ context.Context, arn string, payload []byte) error {
	var ev CartEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"topic":   arn,
		"type":    ev.Type,
		"cartID":  ev.CartID,
		"version": ev.Version,
		"op":      ev.Mutation,
	}).Info("cart event")
	return nil
}
