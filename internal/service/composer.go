package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/common/llm"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
)

const (
	lookupApology = "En este momento no puedo consultar tu información. Por favor intenta nuevamente en unos minutos."
	missingValue  = "-"
)

const answerSystemPrompt = `Eres un asistente financiero amable que responde en español de Perú.
Usa SOLO los datos proporcionados para responder.
Si la pregunta es sobre el monto total de la deuda, responde con el monto en soles (S/) y un mensaje claro.
Si es sobre la fecha de vencimiento, responde con la fecha y un mensaje claro.
Responde en dos oraciones como máximo. No saludes por nombre.
No inventes datos. Si un dato no está en la información, di que no lo tienes.`

// Composer turns record lookups into user-facing replies.
type Composer struct {
	generator llm.Generator
	timeout   time.Duration
}

// NewComposer returns a composer. A nil generator means debt answers always
// use the fixed templates.
func NewComposer(generator llm.Generator, generateTimeout time.Duration) *Composer {
	if generateTimeout <= 0 {
		generateTimeout = 10 * time.Second
	}
	return &Composer{generator: generator, timeout: generateTimeout}
}

// Compose answers question for the given intent from the rows found for
// identifier. It always returns a reply.
func (c *Composer) Compose(ctx context.Context, intent model.Intent, reason, question, identifier string, rows []model.Record) string {
	switch intent {
	case model.IntentOTP:
		return otpAnswer(identifier, rows)
	case model.IntentDebt:
		if len(rows) == 0 {
			return fmt.Sprintf("No encontré información para el DNI %s. ¿Podrías verificarlo, por favor?", identifier)
		}
		if c.generator != nil {
			answer, err := c.generate(ctx, reason, question, rows[0])
			if err == nil {
				return answer
			}
			slog.WarnContext(ctx, "answer generation failed, using template",
				"error", err,
				"reason", reason)
		}
		return debtTemplate(reason, rows[0])
	default:
		return ""
	}
}

// LookupFailed is the reply when the record search itself is unavailable.
func (c *Composer) LookupFailed(model.Intent) string {
	return lookupApology
}

func (c *Composer) generate(ctx context.Context, reason, question string, row model.Record) (string, error) {
	data, err := json.Marshal(row.Subset(model.DebtFields))
	if err != nil {
		return "", fmt.Errorf("%w: encoding record: %w", ErrGeneration, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	answer, err := c.generator.Generate(ctx, llm.GenerateRequest{
		SystemPrompt: answerSystemPrompt,
		UserPrompt: fmt.Sprintf("Pregunta: %s\nDatos: %s\nTipo de consulta: %s",
			strings.TrimSpace(question), data, reason),
		MaxTokens:   220,
		Temperature: llm.Temp(0.1),
	})
	if err != nil {
		return "", errors.Join(ErrGeneration, err)
	}
	return answer, nil
}

func debtTemplate(reason string, row model.Record) string {
	total := valueOr(row, model.FieldTotalDebt, model.FieldAmount)
	switch reason {
	case model.ReasonTotalDebt:
		return fmt.Sprintf("Tu deuda total es de S/ %s.", total)
	case model.ReasonDueDate:
		return fmt.Sprintf("Tu deuda vence el %s.", valueOr(row, model.FieldDueDate))
	default:
		return fmt.Sprintf("Estado %s, total S/ %s, vence el %s.",
			valueOr(row, model.FieldStatus), total, valueOr(row, model.FieldDueDate))
	}
}

func otpAnswer(phone string, rows []model.Record) string {
	last4 := phone
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}
	for _, r := range rows {
		if code := r.String(model.FieldOTPCode); code != "" {
			return fmt.Sprintf("Tu código OTP es %s. Corresponde al número terminado en %s.", code, last4)
		}
	}
	return fmt.Sprintf("No encontré un código OTP para el número terminado en %s. ¿Podrías verificarlo, por favor?", last4)
}

// valueOr returns the first non-empty field, or a dash.
func valueOr(row model.Record, fields ...string) string {
	for _, f := range fields {
		if v := row.String(f); v != "" {
			return v
		}
	}
	return missingValue
}
