package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/http/handler"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service"
)

var _ = Describe("MessageHandler", func() {
	var (
		router *gin.Engine
		svc    *mockMessageService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockMessageService{}
		h := handler.NewMessageHandler(svc)
		router.POST("/api/process-message", h.Process)
	})

	post := func(payload any) *httptest.ResponseRecorder {
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, "/api/process-message", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("returns the reply with a masked session snapshot", func() {
		svc.processFn = func(_ context.Context, params service.ProcessMessageParams) (*service.ProcessMessageResult, error) {
			return &service.ProcessMessageResult{
				ContactID:    params.ContactID,
				ResponseText: "Ana, tu deuda total es de S/ 150.00.",
				Intent:       string(model.IntentDebt),
				Session:      model.Session{Name: "Ana", DNI: "12345678"},
			}, nil
		}

		w := post(map[string]string{
			"contact_id":   "c-1",
			"message_text": "cuanto debo 12345678",
			"contact_name": "Ana",
		})

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["response_text"]).To(Equal("Ana, tu deuda total es de S/ 150.00."))
		Expect(resp["intent"]).To(Equal("debt"))
		session := resp["session"].(map[string]any)
		Expect(session["name"]).To(Equal("Ana"))
		Expect(session["dni"]).To(Equal("*****678"))

		Expect(svc.calls).To(HaveLen(1))
		Expect(svc.calls[0].Text).To(Equal("cuanto debo 12345678"))
		Expect(svc.calls[0].ContactName).To(Equal("Ana"))
	})

	It("accepts an external user id instead of a contact id", func() {
		w := post(map[string]string{
			"external_user_id": "crm-9",
			"message_text":     "hola",
		})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(svc.calls[0].ExternalUserID).To(Equal("crm-9"))
	})

	DescribeTable("rejects invalid bodies",
		func(payload map[string]string) {
			w := post(payload)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(svc.calls).To(BeEmpty())
		},
		Entry("no contact reference", map[string]string{"message_text": "hola"}),
		Entry("missing text", map[string]string{"contact_id": "c-1"}),
		Entry("blank text", map[string]string{"contact_id": "c-1", "message_text": "   "}),
	)

	It("maps a missing contact from the service to 400", func() {
		svc.processFn = func(context.Context, service.ProcessMessageParams) (*service.ProcessMessageResult, error) {
			return nil, service.ErrMissingContact
		}

		w := post(map[string]string{"contact_id": "c-1", "message_text": "hola"})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
