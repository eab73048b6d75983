package models

import (
	"fmt"
	"strings"
	"time"
)

type Trigger string

const (
	TriggerPriceDrop    Trigger = "price_drop"
	TriggerAvailability Trigger = "availability"
	TriggerFastShipping Trigger = "fast_shipping"
	TriggerSpecificDate Trigger = "specific_date"
	TriggerLowStock     Trigger = "low_stock"
)

type ConditionType string

const (
	ConditionPriceBelow          ConditionType = "price_below"
	ConditionPriceDropPercentage ConditionType = "price_drop_percentage"
	ConditionDeliveryDays        ConditionType = "delivery_days"
	ConditionStockLevel          ConditionType = "stock_level"
)

type Action string

const (
	ActionNotify     Action = "notify"
	ActionHighlight  Action = "highlight"
	ActionEmail      Action = "email"
	ActionMarkUrgent Action = "mark_urgent"
)

func (t Trigger) Valid() bool {
	switch t {
	case TriggerPriceDrop, TriggerAvailability, TriggerFastShipping, TriggerSpecificDate, TriggerLowStock:
		return true
	}
	return false
}

func (c ConditionType) Valid() bool {
	switch c {
	case ConditionPriceBelow, ConditionPriceDropPercentage, ConditionDeliveryDays, ConditionStockLevel:
		return true
	}
	return false
}

func (a Action) Valid() bool {
	switch a {
	case ActionNotify, ActionHighlight, ActionEmail, ActionMarkUrgent:
		return true
	}
	return false
}

// Rule is stored configuration only. Nothing in this service evaluates it.
type Rule struct {
	ID             int64         `json:"id"`
	UserID         string        `json:"userId"`
	Name           string        `json:"name"`
	Trigger        Trigger       `json:"trigger"`
	ConditionType  ConditionType `json:"conditionType,omitempty"`
	ConditionValue string        `json:"conditionValue,omitempty"`
	Action         Action        `json:"action"`
	IsActive       bool          `json:"isActive"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

type RuleUpdate struct {
	Name           *string        `json:"name,omitempty"`
	Trigger        *Trigger       `json:"trigger,omitempty"`
	ConditionType  *ConditionType `json:"conditionType,omitempty"`
	ConditionValue *string        `json:"conditionValue,omitempty"`
	Action         *Action        `json:"action,omitempty"`
	IsActive       *bool          `json:"isActive,omitempty"`
}

// RuleProduct links a rule to a product owned by the same user.
type RuleProduct struct {
	ID        int64 `json:"id"`
	RuleID    int64 `json:"ruleId"`
	ProductID int64 `json:"productId"`
}

func (u RuleUpdate) Apply(r *Rule) {
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.Trigger != nil {
		r.Trigger = *u.Trigger
	}
	if u.ConditionType != nil {
		r.ConditionType = *u.ConditionType
	}
	if u.ConditionValue != nil {
		r.ConditionValue = *u.ConditionValue
	}
	if u.Action != nil {
		r.Action = *u.Action
	}
	if u.IsActive != nil {
		r.IsActive = *u.IsActive
	}
}

func (r *Rule) Validate() []string {
	var errors []string

	if r.UserID == "" {
		errors = append(errors, "user id is required")
	}

	if strings.TrimSpace(r.Name) == "" {
		errors = append(errors, "name is required")
	}

	if !r.Trigger.Valid() {
		errors = append(errors, fmt.Sprintf("invalid trigger %q", r.Trigger))
	}

	if r.ConditionType != "" && !r.ConditionType.Valid() {
		errors = append(errors, fmt.Sprintf("invalid condition type %q", r.ConditionType))
	}

	if !r.Action.Valid() {
		errors = append(errors, fmt.Sprintf("invalid action %q", r.Action))
	}

	return errors
}
