package intent

import (
	"context"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/extraction"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
)

type rule struct {
	intent   model.Intent
	reason   string
	keywords []string
}

// Evaluated in order; the first rule with a matching keyword wins.
var rules = []rule{
	{model.IntentOTP, model.ReasonOTPLookup, []string{"clave", "otp", "codigo", "no me llego", "token"}},
	{model.IntentDebt, model.ReasonDueDate, []string{"vence", "vencimiento", "fecha de pago"}},
	{model.IntentDebt, model.ReasonTotalDebt, []string{"cuanto debo", "saldo", "monto", "total"}},
	{model.IntentDebt, model.ReasonDebtStatus, []string{"deuda", "prestamo", "debo", "pagar"}},
}

type heuristic struct{}

// NewHeuristic returns the keyword router. Matching is accent and case
// insensitive and only considers whole words.
func NewHeuristic() Router {
	return heuristic{}
}

func (heuristic) Route(_ context.Context, text string) model.IntentDecision {
	folded := extraction.Fold(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if extraction.ContainsPhrase(folded, kw) {
				return model.IntentDecision{
					Intent:           r.intent,
					RequiresIdentity: true,
					Reason:           r.reason,
					FollowupQuestion: Followup(r.intent, r.reason),
				}
			}
		}
	}
	return model.IntentDecision{
		Intent:        model.IntentGeneral,
		Reason:        model.ReasonGeneral,
		ConciseAnswer: GeneralAnswer,
	}
}
