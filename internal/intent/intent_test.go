package intent_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/common/llm"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/intent"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockLLM struct {
	chatFn func(ctx context.Context, req llm.Request, result any) (*llm.Response, error)
	calls  int
}

func (m *mockLLM) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	m.calls++
	return m.chatFn(ctx, req, result)
}

func (m *mockLLM) Model() string { return "test-model" }

func replyWith(raw string) func(context.Context, llm.Request, any) (*llm.Response, error) {
	return func(_ context.Context, _ llm.Request, result any) (*llm.Response, error) {
		if err := json.Unmarshal([]byte(raw), result); err != nil {
			return nil, err
		}
		return &llm.Response{}, nil
	}
}

var _ = Describe("Heuristic router", func() {
	router := intent.NewHeuristic()

	DescribeTable("routes by folded keywords",
		func(text string, wantIntent model.Intent, wantReason string) {
			d := router.Route(context.Background(), text)
			Expect(d.Intent).To(Equal(wantIntent))
			Expect(d.Reason).To(Equal(wantReason))
			Expect(d.Validate()).To(Succeed())
		},
		Entry("otp code", "No me llegó el CÓDIGO", model.IntentOTP, model.ReasonOTPLookup),
		Entry("otp keyword", "mi clave no funciona", model.IntentOTP, model.ReasonOTPLookup),
		Entry("due date", "¿Cuándo vence mi cuota?", model.IntentDebt, model.ReasonDueDate),
		Entry("payment date", "fecha de pago por favor", model.IntentDebt, model.ReasonDueDate),
		Entry("total owed", "¿Cuánto debo?", model.IntentDebt, model.ReasonTotalDebt),
		Entry("balance", "quiero ver mi saldo", model.IntentDebt, model.ReasonTotalDebt),
		Entry("debt", "tengo una deuda", model.IntentDebt, model.ReasonDebtStatus),
		Entry("loan", "sobre mi préstamo", model.IntentDebt, model.ReasonDebtStatus),
		Entry("greeting", "hola buenas tardes", model.IntentGeneral, model.ReasonGeneral),
	)

	It("does not match keywords inside other words", func() {
		d := router.Route(context.Background(), "totalmente de acuerdo")
		Expect(d.Intent).To(Equal(model.IntentGeneral))
	})

	It("asks for the right identifier", func() {
		Expect(router.Route(context.Background(), "no me llegó el token").FollowupQuestion).To(Equal(intent.OTPFollowup))
		Expect(router.Route(context.Background(), "¿cuándo vence?").FollowupQuestion).To(Equal(intent.DueDateFollowup))
		Expect(router.Route(context.Background(), "mi deuda").FollowupQuestion).To(Equal(intent.DebtFollowup))
	})

	It("answers general messages", func() {
		d := router.Route(context.Background(), "gracias")
		Expect(d.RequiresIdentity).To(BeFalse())
		Expect(d.ConciseAnswer).To(Equal(intent.GeneralAnswer))
	})
})

var _ = Describe("Classifier router", func() {
	var mock *mockLLM

	BeforeEach(func() {
		mock = &mockLLM{}
	})

	It("returns a valid decision from the model", func() {
		mock.chatFn = replyWith(`{"intent":"otp","requires_identity":true,"reason":"otp_lookup","concise_answer":"","followup_question":"¿Tu celular?"}`)
		d := intent.NewClassifier(mock, time.Second).Route(context.Background(), "no me llega la clave")

		Expect(d.Intent).To(Equal(model.IntentOTP))
		Expect(d.FollowupQuestion).To(Equal("¿Tu celular?"))
		Expect(mock.calls).To(Equal(1))
	})

	It("sends the decision schema with a deterministic temperature", func() {
		mock.chatFn = func(_ context.Context, req llm.Request, result any) (*llm.Response, error) {
			Expect(req.SchemaName).To(Equal("intent_decision"))
			Expect(req.Schema).NotTo(BeNil())
			Expect(req.UserPrompt).To(ContainSubstring("hola"))
			Expect(*req.Temperature).To(BeZero())
			return replyWith(`{"intent":"general","requires_identity":false,"reason":"general","concise_answer":"¡Hola!","followup_question":""}`)(nil, req, result)
		}
		d := intent.NewClassifier(mock, time.Second).Route(context.Background(), "hola")
		Expect(d.ConciseAnswer).To(Equal("¡Hola!"))
	})

	It("falls back when the call fails", func() {
		mock.chatFn = func(context.Context, llm.Request, any) (*llm.Response, error) {
			return nil, errors.New("rate limited")
		}
		d := intent.NewClassifier(mock, time.Second).Route(context.Background(), "hola")
		Expect(d).To(Equal(intent.Fallback()))
		Expect(mock.calls).To(Equal(2))
	})

	It("retries a transient failure once", func() {
		ok := replyWith(`{"intent":"debt","requires_identity":true,"reason":"total_debt","concise_answer":"","followup_question":"¿Tu DNI?"}`)
		mock.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
			if mock.calls == 1 {
				return nil, llm.ErrEmptyCompletion
			}
			return ok(ctx, req, result)
		}
		d := intent.NewClassifier(mock, time.Second).Route(context.Background(), "cuanto debo")
		Expect(d.Reason).To(Equal(model.ReasonTotalDebt))
		Expect(mock.calls).To(Equal(2))
	})

	It("falls back on a decision that fails validation", func() {
		mock.chatFn = replyWith(`{"intent":"refund","requires_identity":false,"reason":"x","concise_answer":"","followup_question":""}`)
		d := intent.NewClassifier(mock, time.Second).Route(context.Background(), "hola")
		Expect(d.Intent).To(Equal(model.IntentDebt))
		Expect(d.Reason).To(Equal(model.ReasonFallback))
		Expect(d.FollowupQuestion).To(Equal(intent.FallbackFollowup))
	})

	It("bounds the call with the classifier timeout", func() {
		mock.chatFn = func(ctx context.Context, _ llm.Request, _ any) (*llm.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		d := intent.NewClassifier(mock, 20*time.Millisecond).Route(context.Background(), "hola")
		Expect(d.Reason).To(Equal(model.ReasonFallback))
	})
})

var _ = Describe("New", func() {
	It("uses the heuristic when auto has no client", func() {
		r, err := intent.New(intent.StrategyAuto, nil, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Route(context.Background(), "mi deuda").Reason).To(Equal(model.ReasonDebtStatus))
	})

	It("requires a client for the llm strategy", func() {
		_, err := intent.New(intent.StrategyLLM, nil, 0)
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown strategies", func() {
		_, err := intent.New("regex", nil, 0)
		Expect(err).To(HaveOccurred())
	})
})
