package intent

import (
	"context"
	"fmt"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/common/llm"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
)

// Router classifies one user message. It never fails: implementations fall
// back to a safe decision instead of returning an error.
type Router interface {
	Route(ctx context.Context, text string) model.IntentDecision
}

const (
	StrategyAuto      = "auto"
	StrategyHeuristic = "heuristic"
	StrategyLLM       = "llm"
)

const (
	GeneralAnswer = "Hola, ¿en qué puedo ayudarte hoy?"

	DebtFollowup     = "Para ayudarte, necesito tu DNI (8 dígitos), por favor."
	DueDateFollowup  = "Para verificar fechas, por favor ingresa tu DNI (8 dígitos)."
	OTPFollowup      = "Para validar tu clave OTP necesito tu número de celular (9 dígitos que empiecen en 9)."
	FallbackFollowup = "Para continuar, por favor ingresa tu DNI (8 dígitos)."
)

// Followup returns the question asking for the identifier an intent needs.
func Followup(intent model.Intent, reason string) string {
	switch {
	case intent == model.IntentOTP:
		return OTPFollowup
	case reason == model.ReasonDueDate:
		return DueDateFollowup
	case intent == model.IntentDebt:
		return DebtFollowup
	default:
		return ""
	}
}

// Fallback is the decision used whenever classification cannot be trusted.
func Fallback() model.IntentDecision {
	return model.IntentDecision{
		Intent:           model.IntentDebt,
		RequiresIdentity: true,
		Reason:           model.ReasonFallback,
		FollowupQuestion: FallbackFollowup,
	}
}

// New picks the router for strategy. "auto" uses the classifier when a
// client is available and the keyword heuristic otherwise.
func New(strategy string, client llm.Client, timeout time.Duration) (Router, error) {
	switch strategy {
	case "", StrategyAuto:
		if client == nil {
			return NewHeuristic(), nil
		}
		return NewClassifier(client, timeout), nil
	case StrategyLLM:
		if client == nil {
			return nil, fmt.Errorf("intent strategy %q needs an LLM client", strategy)
		}
		return NewClassifier(client, timeout), nil
	case StrategyHeuristic:
		return NewHeuristic(), nil
	default:
		return nil, fmt.Errorf("unknown intent strategy %q", strategy)
	}
}
