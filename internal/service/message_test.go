package service_test

import (
	"context"
	"errors"
	"time"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/intent"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service/channel"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MessageService", func() {
	var (
		ctx        context.Context
		sessions   *memSessionStore
		locker     *mockLocker
		dispatcher *mockDispatcher
		svc        service.MessageService
	)

	BeforeEach(func() {
		ctx = context.Background()
		sessions = newMemSessionStore()
		locker = &mockLocker{}
		dispatcher = &mockDispatcher{}

		services := service.NewServices(service.Deps{
			Conversation: service.ConversationDeps{
				Sessions: sessions,
				Locker:   locker,
				Records:  &mockRecordSearch{},
				Router:   intent.NewHeuristic(),
				Composer: service.NewComposer(nil, time.Second),
			},
			Dispatcher: dispatcher,
		})
		svc = services.Messages()
	})

	It("returns the reply without sending it", func() {
		res, err := svc.Process(ctx, service.ProcessMessageParams{
			ContactID:   "c-1",
			Text:        "¿cuánto debo?",
			ContactName: "Luis",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.ResponseText).To(Equal("Luis, " + intent.DebtFollowup))
		Expect(res.Intent).To(Equal(string(model.IntentDebt)))
		Expect(res.Session.PendingIntent).To(Equal(model.IntentDebt))
		Expect(dispatcher.sent).To(BeEmpty())
	})

	It("resolves the contact from an external user id", func() {
		res, err := svc.Process(ctx, service.ProcessMessageParams{ExternalUserID: "crm-9", Text: "hola"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.ContactID).To(Equal("resolved-crm-9"))
		_, err = sessions.Get(ctx, "resolved-crm-9")
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires some contact identity", func() {
		_, err := svc.Process(ctx, service.ProcessMessageParams{Text: "hola"})
		Expect(err).To(MatchError(service.ErrMissingContact))
	})

	It("turns internal failures into a personalized apology", func() {
		sessions.sessions["c-1"] = model.Session{Name: "Rosa"}
		locker.lockErr = errors.New("redis down")

		res, err := svc.Process(ctx, service.ProcessMessageParams{ContactID: "c-1", Text: "hola"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Intent).To(Equal("error"))
		Expect(res.ResponseText).To(HavePrefix("Rosa, Disculpa"))
	})

	It("apologizes when contact resolution fails", func() {
		dispatcher.resolveFn = func(context.Context, channel.ContactRef) (string, error) {
			return "", errors.New("respond.io down")
		}
		res, err := svc.Process(ctx, service.ProcessMessageParams{ExternalUserID: "crm-9", Text: "hola"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Intent).To(Equal("error"))
	})
})
