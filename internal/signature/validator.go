// Package signature verifies webhook payloads signed with a shared secret.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// WebhookKind selects which shared secret signs a webhook route.
type WebhookKind string

const (
	KindMessage      WebhookKind = "message"
	KindConversation WebhookKind = "conversation"
	// KindTelegram secrets are echoed verbatim by the sender, not signed.
	KindTelegram WebhookKind = "telegram"
)

// Validator checks base64(HMAC-SHA256(secret, body)) signatures. Secrets are
// fixed at construction; the zero value rejects everything.
type Validator struct {
	secrets map[WebhookKind][]byte
}

func NewValidator(secrets map[WebhookKind]string) *Validator {
	v := &Validator{secrets: make(map[WebhookKind][]byte, len(secrets))}
	for kind, secret := range secrets {
		if secret != "" {
			v.secrets[kind] = []byte(secret)
		}
	}
	return v
}

// Valid reports whether signature matches body for kind. It never errors:
// an unknown kind, a missing secret or a malformed signature all yield false.
func (v *Validator) Valid(kind WebhookKind, body []byte, signature string) bool {
	if v == nil {
		return false
	}
	secret, ok := v.secrets[kind]
	if !ok {
		return false
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ValidToken reports whether token equals the secret for kind, in constant
// time.
func (v *Validator) ValidToken(kind WebhookKind, token string) bool {
	if v == nil {
		return false
	}
	secret, ok := v.secrets[kind]
	if !ok || token == "" {
		return false
	}
	return hmac.Equal(secret, []byte(token))
}

// Configured reports whether a secret exists for kind.
func (v *Validator) Configured(kind WebhookKind) bool {
	if v == nil {
		return false
	}
	_, ok := v.secrets[kind]
	return ok
}

// Sign returns the signature a sender would attach to body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
