package outbox

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/orderledger/pkg/db/models"
	"github.com/angelmondragon/orderledger/pkg/enums"
	"github.com/angelmondragon/orderledger/pkg/outbox/payloads"
)

type decoderFunc func(payload json.RawMessage) (interface{}, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]decoderFunc)}
}

// NewCascadeRegistry returns a registry that understands every v1 cascade event.
func NewCascadeRegistry() *DecoderRegistry {
	r := NewDecoderRegistry()
	r.Register(enums.EventLineItemCreated, 1, decodeAs[payloads.LineItemCreatedEvent])
	r.Register(enums.EventOrderCreated, 1, decodeAs[payloads.OrderCreatedEvent])
	r.Register(enums.EventOrderShipped, 1, decodeAs[payloads.OrderShippedEvent])
	r.Register(enums.EventLineItemReparented, 1, decodeAs[payloads.ReparentedEvent])
	r.Register(enums.EventOrderReparented, 1, decodeAs[payloads.ReparentedEvent])
	return r
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = decoder
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]; ok {
		return decoder(payload)
	}
	return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
}

// DecodeRow unwraps the stored envelope and decodes its data.
func (r *DecoderRegistry) DecodeRow(row models.OutboxEvent) (PayloadEnvelope, interface{}, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal([]byte(row.Payload), &envelope); err != nil {
		return PayloadEnvelope{}, nil, fmt.Errorf("decode envelope %s: %w", row.ID, err)
	}
	data, err := r.Decode(row.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return envelope, nil, err
	}
	return envelope, data, nil
}

func decodeAs[T any](payload json.RawMessage) (interface{}, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}
