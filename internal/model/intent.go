package model

import (
	"errors"
	"fmt"
	"strings"
)

type Intent string

const (
	IntentGeneral Intent = "general"
	IntentDebt    Intent = "debt"
	IntentOTP     Intent = "otp"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentGeneral, IntentDebt, IntentOTP:
		return true
	}
	return false
}

// RequiresIdentifier reports intents that can only be answered after a record lookup.
func (i Intent) RequiresIdentifier() bool {
	return i == IntentDebt || i == IntentOTP
}

// Reasons the router attaches to a decision. The composer selects debt
// templates by reason.
const (
	ReasonTotalDebt  = "total_debt"
	ReasonDueDate    = "due_date"
	ReasonDebtStatus = "debt_status"
	ReasonOTPLookup  = "otp_lookup"
	ReasonGeneral    = "general"
	ReasonFallback   = "fallback"
)

var ErrInvalidDecision = errors.New("invalid intent decision")

// IntentDecision is the router's verdict for one message.
type IntentDecision struct {
	Intent           Intent `json:"intent" jsonschema:"enum=general,enum=debt,enum=otp"`
	RequiresIdentity bool   `json:"requires_identity"`
	Reason           string `json:"reason" jsonschema:"description=Short snake_case label such as total_debt or due_date"`
	ConciseAnswer    string `json:"concise_answer" jsonschema:"description=Reply for general intents, empty otherwise"`
	FollowupQuestion string `json:"followup_question" jsonschema:"description=Question asking for the missing identifier, empty for general"`
}

// Validate rejects decisions that cannot drive the state machine.
func (d IntentDecision) Validate() error {
	if !d.Intent.Valid() {
		return fmt.Errorf("%w: unknown intent %q", ErrInvalidDecision, d.Intent)
	}
	if strings.TrimSpace(d.Reason) == "" {
		return fmt.Errorf("%w: missing reason", ErrInvalidDecision)
	}
	if d.Intent == IntentGeneral && strings.TrimSpace(d.ConciseAnswer) == "" {
		return fmt.Errorf("%w: general intent without an answer", ErrInvalidDecision)
	}
	if d.Intent.RequiresIdentifier() && d.RequiresIdentity && strings.TrimSpace(d.FollowupQuestion) == "" {
		return fmt.Errorf("%w: %s intent without a follow-up question", ErrInvalidDecision, d.Intent)
	}
	return nil
}
