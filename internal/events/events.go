// Package events defines the cart change notifications written to the outbox
// and relayed to the cart event stream.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/cartsmith/internal/models"
)

type EventType string

const (
	EventTypeProductAdded   EventType = "PRODUCT_ADDED"
	EventTypeProductRemoved EventType = "PRODUCT_REMOVED"
	EventTypeRuleCreated    EventType = "RULE_CREATED"
	EventTypeRuleDeleted    EventType = "RULE_DELETED"
)

const (
	StreamCartEvents = "stream:cart_events"

	AggregateProduct = "product"
	AggregateRule    = "rule"

	source = "cartsmith"
)

// Payload is the JSON body of every cart event. Fields that do not apply to
// an event type are omitted.
type Payload struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	UserID      string    `json:"user_id"`
	Source      string    `json:"source"`
	ProductID   int64     `json:"product_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	Price       string    `json:"price,omitempty"`
	StoreDomain string    `json:"store_domain,omitempty"`
	OriginalURL string    `json:"original_url,omitempty"`
	RuleID      int64     `json:"rule_id,omitempty"`
	RuleName    string    `json:"rule_name,omitempty"`
	Trigger     string    `json:"trigger,omitempty"`
	Action      string    `json:"action,omitempty"`
	ProductIDs  []int64   `json:"product_ids,omitempty"`
}

// Decode reads a payload written by one of the event builders. A payload
// without a user id cannot be routed and is rejected.
func Decode(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if p.UserID == "" {
		return Payload{}, fmt.Errorf("event %s has no user id", p.EventID)
	}
	return p, nil
}

// StreamFields returns the flat fields a stream consumer filters on without
// decoding the JSON body: the owner, and whichever product or rule the event
// concerns.
func (p Payload) StreamFields() map[string]any {
	fields := map[string]any{
		"event_id":   p.EventID,
		"event_type": p.EventType,
		"user_id":    p.UserID,
		"source":     p.Source,
	}
	if p.ProductID != 0 {
		fields["product_id"] = strconv.FormatInt(p.ProductID, 10)
	}
	if p.StoreDomain != "" {
		fields["store_domain"] = p.StoreDomain
	}
	if p.RuleID != 0 {
		fields["rule_id"] = strconv.FormatInt(p.RuleID, 10)
	}
	if p.Trigger != "" {
		fields["trigger"] = p.Trigger
	}
	return fields
}

// Envelope is an encoded event ready to be stored in the outbox.
type Envelope struct {
	UserID        string
	AggregateType string
	AggregateID   string
	EventType     EventType
	Payload       json.RawMessage
	TargetStream  string
}

func ProductAdded(p *models.Product) (Envelope, error) {
	return productEvent(EventTypeProductAdded, p)
}

func ProductRemoved(p *models.Product) (Envelope, error) {
	return productEvent(EventTypeProductRemoved, p)
}

func RuleCreated(r *models.Rule, productIDs []int64) (Envelope, error) {
	return ruleEvent(EventTypeRuleCreated, r, productIDs)
}

func RuleDeleted(r *models.Rule) (Envelope, error) {
	return ruleEvent(EventTypeRuleDeleted, r, nil)
}

func productEvent(t EventType, p *models.Product) (Envelope, error) {
	return encode(t, AggregateProduct, p.ID, Payload{
		UserID:      p.UserID,
		ProductID:   p.ID,
		Title:       p.Title,
		Price:       p.Price,
		StoreDomain: p.StoreDomain,
		OriginalURL: p.OriginalURL,
	})
}

func ruleEvent(t EventType, r *models.Rule, productIDs []int64) (Envelope, error) {
	return encode(t, AggregateRule, r.ID, Payload{
		UserID:     r.UserID,
		RuleID:     r.ID,
		RuleName:   r.Name,
		Trigger:    string(r.Trigger),
		Action:     string(r.Action),
		ProductIDs: productIDs,
	})
}

func encode(t EventType, aggregateType string, id int64, payload Payload) (Envelope, error) {
	payload.EventID = uuid.New().String()
	payload.EventType = string(t)
	payload.Timestamp = time.Now().UTC()
	payload.Source = source

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s event: %w", t, err)
	}

	return Envelope{
		UserID:        payload.UserID,
		AggregateType: aggregateType,
		AggregateID:   strconv.FormatInt(id, 10),
		EventType:     t,
		Payload:       data,
		TargetStream:  StreamCartEvents,
	}, nil
}
