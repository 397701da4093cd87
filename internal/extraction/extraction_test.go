package extraction_test

import (
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/extraction"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ExtractDNI", func() {
	DescribeTable("accepts exactly eight standalone digits",
		func(text, expected string) {
			Expect(extraction.ExtractDNI(text)).To(Equal(expected))
		},
		Entry("bare DNI", "12345678", "12345678"),
		Entry("DNI inside a sentence", "mi dni es 12345678, gracias", "12345678"),
		Entry("DNI after a colon", "DNI:87654321", "87654321"),
		Entry("seven digits", "1234567", ""),
		Entry("nine digits", "123456789", ""),
		Entry("glued to letters", "abc12345678", ""),
		Entry("phone number is not a DNI", "987654321", ""),
		Entry("first of several", "12345678 y 87654321", "12345678"),
		Entry("no digits", "hola", ""),
	)
})

var _ = Describe("ExtractPhone", func() {
	DescribeTable("finds Peruvian mobile numbers",
		func(text, expected string) {
			Expect(extraction.ExtractPhone(text)).To(Equal(expected))
		},
		Entry("bare number", "912345678", "912345678"),
		Entry("with +51", "+51912345678", "912345678"),
		Entry("with 51", "51912345678", "912345678"),
		Entry("grouped with spaces", "mi cel es 912 345 678", "912345678"),
		Entry("country code and spaces", "+51 987 654 321", "987654321"),
		Entry("dashes", "987-654-321", "987654321"),
		Entry("next to a DNI", "12345678 912345678", "912345678"),
		Entry("does not start with 9", "123456789", ""),
		Entry("eight digits", "91234567", ""),
		Entry("ten digits", "9123456789", ""),
		Entry("empty", "", ""),
	)
})

var _ = Describe("NormalizePhone", func() {
	DescribeTable("normalizes contact metadata",
		func(raw, expected string) {
			Expect(extraction.NormalizePhone(raw)).To(Equal(expected))
		},
		Entry("E.164", "+51 987 654 321", "987654321"),
		Entry("already normalized", "987654321", "987654321"),
		Entry("formatted", "(51) 987-654-321", "987654321"),
		Entry("landline", "014567890", ""),
		Entry("empty", "", ""),
	)

	It("is idempotent", func() {
		for _, raw := range []string{"+51987654321", "987654321", "51 912 345 678", "abc"} {
			once := extraction.NormalizePhone(raw)
			Expect(extraction.NormalizePhone(once)).To(Equal(once))
		}
	})
})

var _ = Describe("ExtractName", func() {
	DescribeTable("resolves a display name",
		func(text, contactName, expected string) {
			Expect(extraction.ExtractName(text, contactName)).To(Equal(expected))
		},
		Entry("contact name first token", "hola", "maría fernanda", "María"),
		Entry("contact name upper case", "hola", "JOSÉ", "José"),
		Entry("contact name wins over text", "soy Pedro", "Ana", "Ana"),
		Entry("soy", "Hola, soy carlos", "", "Carlos"),
		Entry("me llamo", "me llamo Lucía y tengo una consulta", "", "Lucía"),
		Entry("mi nombre es", "Mi nombre es ROSA", "", "Rosa"),
		Entry("soy cliente is not a name", "soy cliente desde hace años", "", ""),
		Entry("nothing", "cuanto debo", "", ""),
	)
})

var _ = Describe("ExtractPreferredName", func() {
	DescribeTable("detects explicit corrections",
		func(text, expected string) {
			Expect(extraction.ExtractPreferredName(text)).To(Equal(expected))
		},
		Entry("llámame", "llámame Beto", "Beto"),
		Entry("llamame without accent", "mejor llamame pepe", "Pepe"),
		Entry("puedes llamarme", "puedes llamarme Tito", "Tito"),
		Entry("prefiero que me digas", "prefiero que me digas Lu", "Lu"),
		Entry("dime", "dime Beto", "Beto"),
		Entry("dime mid sentence", "mejor dime Lu", "Lu"),
		Entry("dime opening a question", "dime cuánto debo", ""),
		Entry("dime with a capitalized question word", "Dime Cuánto debo", ""),
		Entry("dime with a lowercase word", "dime algo", ""),
		Entry("no correction", "cuanto debo", ""),
	)
})

var _ = Describe("LooksLikeIdentifier", func() {
	DescribeTable("spots bare number attempts",
		func(text string, expected bool) {
			Expect(extraction.LooksLikeIdentifier(text)).To(Equal(expected))
		},
		Entry("nine digits", "123456789", true),
		Entry("grouped", "123 456 789", true),
		Entry("with plus", "+51 123", false),
		Entry("too short", "12345", false),
		Entry("words", "mi numero 123456789", false),
	)
})

var _ = Describe("Enrich", func() {
	It("fills identifiers and reports changed fields", func() {
		s, changed := extraction.Enrich(model.Session{}, extraction.Input{
			Text:        "soy ana, mi dni es 12345678",
			ContactName: "",
			Channel:     "whatsapp",
		})
		Expect(s.Name).To(Equal("Ana"))
		Expect(s.DNI).To(Equal("12345678"))
		Expect(s.LastChannel).To(Equal("whatsapp"))
		Expect(changed).To(ConsistOf("name", "dni", "last_channel"))
	})

	It("does not overwrite an existing name", func() {
		s, _ := extraction.Enrich(model.Session{Name: "Ana"}, extraction.Input{Text: "soy Carla"})
		Expect(s.Name).To(Equal("Ana"))
	})

	It("stores a preferred name without touching the name", func() {
		s, _ := extraction.Enrich(model.Session{Name: "Roberto"}, extraction.Input{Text: "llámame Beto"})
		Expect(s.Name).To(Equal("Roberto"))
		Expect(s.PreferredName).To(Equal("Beto"))
		Expect(s.DisplayName()).To(Equal("Beto"))
	})

	It("prefers the contact phone over a typed number", func() {
		s, _ := extraction.Enrich(model.Session{}, extraction.Input{
			Text:         "mi numero es 912345678",
			ContactPhone: "+51 987 654 321",
		})
		Expect(s.Phone).To(Equal("987654321"))
	})

	It("takes a typed phone when the contact has none", func() {
		s, _ := extraction.Enrich(model.Session{}, extraction.Input{Text: "912345678"})
		Expect(s.Phone).To(Equal("912345678"))
	})

	It("keeps the pending state untouched", func() {
		in := model.Session{}
		in.SetPending(model.IntentDebt, model.ReasonTotalDebt, "cuanto debo")
		out, _ := extraction.Enrich(in, extraction.Input{Text: "12345678"})
		Expect(out.PendingIntent).To(Equal(model.IntentDebt))
		Expect(out.PendingUserMessage).To(Equal("cuanto debo"))
	})
})

var _ = Describe("Personalize", func() {
	DescribeTable("prefixes the name once",
		func(name, reply, expected string) {
			Expect(extraction.Personalize(name, reply)).To(Equal(expected))
		},
		Entry("adds the name", "Ana", "tu deuda es S/ 10", "Ana, tu deuda es S/ 10"),
		Entry("already addressed", "Ana", "Ana, tu deuda es S/ 10", "Ana, tu deuda es S/ 10"),
		Entry("case insensitive", "José", "jose, hola", "jose, hola"),
		Entry("prefix of a longer word", "Ana", "Anabel es otra persona", "Ana, Anabel es otra persona"),
		Entry("no name", "", "hola", "hola"),
	)
})

var _ = Describe("Fold", func() {
	It("strips accents and punctuation", func() {
		Expect(extraction.Fold("¿Cuánto DEBO?")).To(Equal(" cuanto debo "))
		Expect(extraction.ContainsPhrase(extraction.Fold("No me llegó el código"), "no me llego")).To(BeTrue())
		Expect(extraction.ContainsPhrase(extraction.Fold("debora"), "debo")).To(BeFalse())
	})
})
