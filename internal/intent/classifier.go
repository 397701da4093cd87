package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/common/llm"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
)

var decisionSchema = llm.GenerateSchema[model.IntentDecision]()

const classifierSystemPrompt = `Eres el clasificador de intención de un asistente de cobranzas en Perú.
Clasifica el mensaje del usuario en una de estas intenciones:
- "debt": preguntas sobre deuda, saldo, monto total, préstamo, pagos o fechas de vencimiento.
- "otp": problemas con la clave OTP, códigos o tokens que no llegaron.
- "general": saludos, agradecimientos o cualquier otra consulta.

Reglas:
- requires_identity es true para debt (necesita DNI de 8 dígitos) y otp (necesita celular de 9 dígitos que empiece en 9).
- reason es una etiqueta corta en snake_case: total_debt, due_date, debt_status, otp_lookup o general.
- concise_answer: respuesta breve y amable en español solo para general; vacío en otro caso.
- followup_question: para debt y otp, la pregunta que pide el identificador que falta; vacío para general.
No inventes datos de la deuda ni del usuario.`

const (
	defaultClassifyTimeout = 8 * time.Second
	classifyAttempts       = 2
)

type classifier struct {
	llm     llm.Client
	timeout time.Duration
}

// NewClassifier returns a router backed by one structured LLM call per message.
func NewClassifier(client llm.Client, timeout time.Duration) Router {
	if timeout <= 0 {
		timeout = defaultClassifyTimeout
	}
	return &classifier{llm: client, timeout: timeout}
}

func (c *classifier) Route(ctx context.Context, text string) model.IntentDecision {
	decision, err := c.classify(ctx, text)
	if err != nil {
		slog.WarnContext(ctx, "intent classification failed, using fallback",
			"error", err,
			"model", c.llm.Model())
		return Fallback()
	}
	return decision
}

func (c *classifier) classify(ctx context.Context, text string) (model.IntentDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := llm.Request{
		SystemPrompt: classifierSystemPrompt,
		UserPrompt:   fmt.Sprintf("Mensaje del usuario:\n%s", strings.TrimSpace(text)),
		SchemaName:   "intent_decision",
		Schema:       decisionSchema,
		MaxTokens:    300,
		Temperature:  llm.Temp(0),
	}

	var (
		decision model.IntentDecision
		resp     *llm.Response
		err      error
	)
	start := time.Now()
	// Retries share the single classifier deadline.
	for attempt := 1; attempt <= classifyAttempts; attempt++ {
		decision = model.IntentDecision{}
		resp, err = c.llm.Chat(ctx, req, &decision)
		if err == nil || !llm.IsRetryable(ctx, err) {
			break
		}
	}
	if err != nil {
		return model.IntentDecision{}, fmt.Errorf("classify: %w", err)
	}

	decision.Reason = strings.TrimSpace(decision.Reason)
	if err := decision.Validate(); err != nil {
		return model.IntentDecision{}, err
	}
	if decision.Intent == model.IntentGeneral {
		decision.RequiresIdentity = false
	}

	slog.DebugContext(ctx, "intent classified",
		"intent", decision.Intent,
		"reason", decision.Reason,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens)

	return decision, nil
}
