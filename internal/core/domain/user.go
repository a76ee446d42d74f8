package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConversationStep is the persisted position of a user in the SMS dialog.
type ConversationStep string

const (
	StepAwaitingLocation      ConversationStep = "AWAITING_LOCATION"
	StepAwaitingSearchType    ConversationStep = "AWAITING_SEARCH_TYPE"
	StepAwaitingProducts      ConversationStep = "AWAITING_PRODUCTS"
	StepAwaitingOrderDecision ConversationStep = "AWAITING_ORDER_DECISION"
	StepOrderPlaced           ConversationStep = "ORDER_PLACED"
)

// Valid reports whether s is one of the known steps.
func (s ConversationStep) Valid() bool {
	switch s {
	case StepAwaitingLocation, StepAwaitingSearchType, StepAwaitingProducts,
		StepAwaitingOrderDecision, StepOrderPlaced:
		return true
	}
	return false
}

type SearchType string

const (
	SearchTypeSingle   SearchType = "single"
	SearchTypeMultiple SearchType = "multiple"
)

// SessionData holds transient values of the current conversation.
type SessionData struct {
	SearchType     SearchType      `json:"search_type,omitempty"`
	Comparison     *Comparison     `json:"comparison,omitempty"`
	PendingTotal   decimal.Decimal `json:"pending_total"`
	LastOrderID    string          `json:"last_order_id,omitempty"`
	PendingOrderID string          `json:"pending_order_id,omitempty"` // reserved with the comparison, reused by a repeated ORDER
}

type User struct {
	PhoneNumber      string           `json:"phone_number"`
	CityCode         string           `json:"city_code"`
	Location         string           `json:"location"`
	ConversationStep ConversationStep `json:"conversation_step"`
	SessionData      SessionData      `json:"session_data"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func NewUser(phone string, now time.Time) User {
	return User{
		PhoneNumber:      phone,
		ConversationStep: StepAwaitingLocation,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ClearComparison drops any pending price comparison.
func (d *SessionData) ClearComparison() {
	d.Comparison = nil
	d.PendingTotal = decimal.Zero
	d.PendingOrderID = ""
}

// Step returns the conversation step, falling back to AWAITING_LOCATION for
// empty or unknown values.
func (u User) Step() ConversationStep {
	if !u.ConversationStep.Valid() {
		return StepAwaitingLocation
	}
	return u.ConversationStep
}
