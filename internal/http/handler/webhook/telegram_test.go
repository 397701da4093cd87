package webhook_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/http/handler/webhook"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/signature"
)

var _ = Describe("TelegramWebhookHandler", func() {
	const secret = "tg-secret"

	var (
		router *gin.Engine
		ingest *fakeIngest
	)

	body := []byte(`{"update_id":1,"message":{"message_id":2,"chat":{"id":3,"type":"private"},"text":"hola"}}`)

	post := func(payload []byte, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", bytes.NewReader(payload))
		if token != "" {
			req.Header.Set(webhook.TelegramSecretHeader, token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	setup := func(secrets map[signature.WebhookKind]string) {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		ingest = &fakeIngest{}
		h := webhook.NewTelegramWebhookHandler(signature.NewValidator(secrets), ingest, 1024)
		router.POST("/webhook/telegram", h.Handle)
	}

	BeforeEach(func() {
		setup(map[signature.WebhookKind]string{signature.KindTelegram: secret})
	})

	It("ingests an update carrying the registered secret token", func() {
		w := post(body, secret)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(ingest.bodies).To(Equal([][]byte{body}))
	})

	DescribeTable("rejects updates without the right token",
		func(token string) {
			w := post(body, token)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(ingest.bodies).To(BeEmpty())
		},
		Entry("missing", ""),
		Entry("wrong", "other"),
	)

	It("rejects everything when no secret is configured", func() {
		setup(map[signature.WebhookKind]string{signature.KindMessage: "msg-secret"})

		Expect(post(body, "msg-secret").Code).To(Equal(http.StatusUnauthorized))
		Expect(ingest.bodies).To(BeEmpty())
	})

	It("refuses bodies over the size limit", func() {
		w := post(bytes.Repeat([]byte("a"), 2048), secret)

		Expect(w.Code).To(Equal(http.StatusRequestEntityTooLarge))
	})
})
