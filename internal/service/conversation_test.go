package service_test

import (
	"context"
	"errors"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/common/llm"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/intent"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ConversationService", func() {
	var (
		ctx      context.Context
		sessions *memSessionStore
		locker   *mockLocker
		records  *mockRecordSearch
		profiles *mockProfileStore
		router   *mockRouter
		svc      service.ConversationService
		sent     []string
		deliver  service.DeliverFunc
	)

	debtRow := model.Record{
		model.FieldFirstName: "ANA",
		model.FieldStatus:    "vigente",
		model.FieldTotalDebt: "1500.00",
		model.FieldDueDate:   "15/11/2026",
	}

	turn := func(text string) service.Turn {
		return service.Turn{ContactID: "c-1", MessageID: "m-1", Text: text}
	}

	BeforeEach(func() {
		ctx = context.Background()
		sessions = newMemSessionStore()
		locker = &mockLocker{}
		records = &mockRecordSearch{searchFn: func(_ context.Context, field model.SearchField, value string) ([]model.Record, error) {
			if field == model.SearchFieldDNI && value == "12345678" {
				return []model.Record{debtRow}, nil
			}
			if field == model.SearchFieldPhone && value == "912345678" {
				return []model.Record{{model.FieldOTPCode: "482913", model.FieldPhoneNumber: "912345678"}}, nil
			}
			return nil, nil
		}}
		profiles = &mockProfileStore{done: make(chan struct{}, 8)}
		heuristic := intent.NewHeuristic()
		router = &mockRouter{routeFn: heuristic.Route}
		sent = nil
		deliver = func(_ context.Context, text string) error {
			sent = append(sent, text)
			return nil
		}

		svc = service.NewConversationService(service.ConversationDeps{
			Sessions: sessions,
			Locker:   locker,
			Records:  records,
			Profiles: profiles,
			Router:   router,
			Composer: service.NewComposer(nil, time.Second),
		}, service.ConversationTimeouts{Search: time.Second, Profile: time.Second}, nil)
	})

	stored := func() model.Session {
		s, err := sessions.Get(ctx, "c-1")
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	Describe("general messages", func() {
		It("answers and stays idle", func() {
			reply, err := svc.Handle(ctx, turn("hola"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal(intent.GeneralAnswer))
			Expect(reply.Intent).To(Equal(model.IntentGeneral))
			Expect(sent).To(Equal([]string{intent.GeneralAnswer}))
			Expect(stored().HasPending()).To(BeFalse())
		})

		It("addresses the user by the contact name", func() {
			t := turn("hola")
			t.ContactName = "maría josé"
			reply, err := svc.Handle(ctx, t, deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("María, " + intent.GeneralAnswer))
		})

		It("prefers the name the user asked to be called", func() {
			t := turn("hola, llámame Pepe")
			t.ContactName = "José"
			reply, err := svc.Handle(ctx, t, deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(HavePrefix("Pepe, "))
			Expect(stored().Name).To(Equal("José"))
		})

		It("treats a bare DNI without a pending question as general and remembers it", func() {
			reply, err := svc.Handle(ctx, turn("12345678"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Intent).To(Equal(model.IntentGeneral))
			Expect(stored().DNI).To(Equal("12345678"))
			Expect(records.calls).To(BeEmpty())
		})
	})

	Describe("debt questions", func() {
		It("asks for the DNI and stores the pending question", func() {
			reply, err := svc.Handle(ctx, turn("¿cuánto debo?"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal(intent.DebtFollowup))

			s := stored()
			Expect(s.PendingIntent).To(Equal(model.IntentDebt))
			Expect(s.PendingReason).To(Equal(model.ReasonTotalDebt))
			Expect(s.PendingUserMessage).To(Equal("¿cuánto debo?"))
		})

		It("resolves the original question once the DNI arrives", func() {
			_, err := svc.Handle(ctx, turn("¿cuánto debo?"), deliver)
			Expect(err).NotTo(HaveOccurred())

			reply, err := svc.Handle(ctx, turn("mi dni es 12345678"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("Tu deuda total es de S/ 1500.00."))
			Expect(reply.Reason).To(Equal(model.ReasonTotalDebt))
			Expect(records.calls).To(Equal([]string{"dni:12345678"}))
			Expect(router.calls).To(Equal(1))
			Expect(stored().HasPending()).To(BeFalse())
		})

		It("passes the stored question to the generator, not the follow-up", func() {
			gen := &mockGenerator{generateFn: func(context.Context, llm.GenerateRequest) (string, error) {
				return "Debes S/ 1500.00.", nil
			}}
			svc = service.NewConversationService(service.ConversationDeps{
				Sessions: sessions,
				Locker:   locker,
				Records:  records,
				Router:   router,
				Composer: service.NewComposer(gen, time.Second),
			}, service.ConversationTimeouts{}, nil)

			_, _ = svc.Handle(ctx, turn("¿cuándo vence mi deuda?"), deliver)
			reply, err := svc.Handle(ctx, turn("12345678"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("Debes S/ 1500.00."))
			Expect(gen.lastReq.UserPrompt).To(ContainSubstring("¿cuándo vence mi deuda?"))
			Expect(gen.lastReq.UserPrompt).To(ContainSubstring("due_date"))
		})

		It("answers immediately when the DNI is already known", func() {
			sessions.sessions["c-1"] = model.Session{DNI: "12345678"}

			reply, err := svc.Handle(ctx, turn("¿cuándo vence?"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("Tu deuda vence el 15/11/2026."))
		})

		It("keeps the first question when the same request is repeated", func() {
			_, _ = svc.Handle(ctx, turn("¿cuándo vence mi préstamo?"), deliver)
			_, _ = svc.Handle(ctx, turn("tengo una deuda"), deliver)

			Expect(stored().PendingUserMessage).To(Equal("¿cuándo vence mi préstamo?"))
		})

		It("re-asks with a hint when the identifier does not validate", func() {
			_, _ = svc.Handle(ctx, turn("mi deuda"), deliver)

			reply, err := svc.Handle(ctx, turn("1234567"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(ContainSubstring("no parece válido"))
			Expect(reply.Text).To(ContainSubstring(intent.DebtFollowup))
			Expect(stored().PendingIntent).To(Equal(model.IntentDebt))
			Expect(records.calls).To(BeEmpty())
		})

		It("says when the DNI has no records", func() {
			_, _ = svc.Handle(ctx, turn("mi deuda"), deliver)
			reply, err := svc.Handle(ctx, turn("87654321"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("No encontré información para el DNI 87654321. ¿Podrías verificarlo, por favor?"))
		})

		It("apologizes and keeps waiting when the lookup is unavailable", func() {
			records.searchFn = func(context.Context, model.SearchField, string) ([]model.Record, error) {
				return nil, errors.New("timeout")
			}
			_, _ = svc.Handle(ctx, turn("mi deuda"), deliver)

			reply, err := svc.Handle(ctx, turn("12345678"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(ContainSubstring("no puedo consultar tu información"))

			s := stored()
			Expect(s.PendingIntent).To(Equal(model.IntentDebt))
			Expect(s.PendingUserMessage).To(Equal("mi deuda"))
		})
	})

	Describe("OTP questions", func() {
		It("asks for a phone starting with 9", func() {
			reply, err := svc.Handle(ctx, turn("no me llegó la clave"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal(intent.OTPFollowup))
			Expect(stored().PendingIntent).To(Equal(model.IntentOTP))
		})

		It("resolves with a valid phone and shows only its last digits", func() {
			_, _ = svc.Handle(ctx, turn("no me llegó la clave"), deliver)

			reply, err := svc.Handle(ctx, turn("912345678"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(ContainSubstring("482913"))
			Expect(reply.Text).To(ContainSubstring("5678"))
			Expect(reply.Text).NotTo(ContainSubstring("912345678"))
			Expect(stored().HasPending()).To(BeFalse())
		})

		It("does not resolve with a number that does not start with 9", func() {
			_, _ = svc.Handle(ctx, turn("no me llegó la clave"), deliver)

			reply, err := svc.Handle(ctx, turn("123456789"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(ContainSubstring(intent.OTPFollowup))
			Expect(stored().PendingIntent).To(Equal(model.IntentOTP))
			Expect(records.calls).To(BeEmpty())
		})

		It("uses the contact phone when the platform provides it", func() {
			t := turn("no me llegó el código")
			t.ContactPhone = "+51 912 345 678"
			reply, err := svc.Handle(ctx, t, deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(ContainSubstring("482913"))
		})
	})

	Describe("topic switches", func() {
		It("drops a pending debt question when the user asks about OTP", func() {
			_, _ = svc.Handle(ctx, turn("¿cuánto debo?"), deliver)

			reply, err := svc.Handle(ctx, turn("no me llegó el token"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal(intent.OTPFollowup))
			s := stored()
			Expect(s.PendingIntent).To(Equal(model.IntentOTP))
			Expect(s.PendingUserMessage).To(Equal("no me llegó el token"))

			reply, err = svc.Handle(ctx, turn("12345678"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).NotTo(ContainSubstring("deuda"))
			Expect(records.calls).To(BeEmpty())
		})

		It("drops a pending question for a general message", func() {
			_, _ = svc.Handle(ctx, turn("mi deuda"), deliver)
			_, _ = svc.Handle(ctx, turn("gracias, adiós"), deliver)
			Expect(stored().HasPending()).To(BeFalse())
		})
	})

	Describe("delivery", func() {
		It("does not persist the turn when delivery fails", func() {
			failing := func(context.Context, string) error { return errors.New("channel down") }

			reply, err := svc.Handle(ctx, turn("¿cuánto debo?"), failing)
			Expect(err).To(MatchError(service.ErrReplyNotSent))
			Expect(reply.Text).To(Equal(intent.DebtFollowup))
			_, getErr := sessions.Get(ctx, "c-1")
			Expect(getErr).To(MatchError(store.ErrNotFound))
		})

		It("always persists when the caller delivers the reply", func() {
			_, err := svc.Handle(ctx, turn("mi deuda"), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored().PendingIntent).To(Equal(model.IntentDebt))
		})

		It("holds the contact lock for the whole turn", func() {
			_, err := svc.Handle(ctx, turn("hola"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(locker.locks).To(Equal(1))
			Expect(locker.releases).To(Equal(1))
		})

		It("hands lock contention back to the caller for a retry", func() {
			locker.lockErr = store.ErrLockNotAcquired
			_, err := svc.Handle(ctx, turn("hola"), deliver)
			Expect(err).To(MatchError(store.ErrLockNotAcquired))
			Expect(err).NotTo(MatchError(service.ErrReplyNotSent))
			Expect(sent).To(BeEmpty())
		})

		It("still answers when the session cannot be read", func() {
			sessions.getErr = errors.New("redis: connection refused")

			reply, err := svc.Handle(ctx, turn("cuanto debo"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(sent).To(Equal([]string{intent.DebtFollowup}))
			Expect(reply.Intent).To(Equal(model.IntentDebt))
			Expect(sessions.saves).To(BeZero())
		})

		It("answers from the message alone when the session cannot be read", func() {
			sessions.getErr = errors.New("redis: connection refused")

			_, err := svc.Handle(ctx, turn("cuanto debo, mi dni es 12345678"), deliver)
			Expect(err).NotTo(HaveOccurred())
			Expect(sent).To(HaveLen(1))
			Expect(sent[0]).To(ContainSubstring("1500.00"))
		})

		It("records the profile in the background", func() {
			t := turn("hola, soy Ana, mi dni es 12345678")
			_, err := svc.Handle(ctx, t, deliver)
			Expect(err).NotTo(HaveOccurred())

			Eventually(profiles.done).Should(Receive())
			profiles.mu.Lock()
			defer profiles.mu.Unlock()
			Expect(profiles.turns).To(HaveLen(1))
			Expect(profiles.turns[0].ContactID).To(Equal("c-1"))
			Expect(profiles.turns[0].DNI).To(Equal("12345678"))
		})
	})

	Describe("admin operations", func() {
		It("reads and resets a session", func() {
			_, _ = svc.Handle(ctx, turn("mi deuda"), deliver)

			s, err := svc.Session(ctx, "c-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.PendingIntent).To(Equal(model.IntentDebt))

			Expect(svc.Reset(ctx, "c-1")).To(Succeed())
			_, err = svc.Session(ctx, "c-1")
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})
})
