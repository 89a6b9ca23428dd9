package payment

import "testing"

const testSecret = "webhook-test-secret"

func signedPayload() WebhookPayload {
	p := WebhookPayload{
		PaymentRequestID: "pr-123",
		State:            StateSuccess,
		Amount:           25,
		Description:      "Thanh toan don hang o-1",
		ReferenceID:      "o-1",
		MerchantID:       "m-1",
	}
	p.Signature = Sign(testSecret, p)
	return p
}

func TestVerifySignature(t *testing.T) {
	t.Run("accepts a payload signed with the shared secret", func(t *testing.T) {
		if !VerifySignature(testSecret, signedPayload()) {
			t.Fatal("valid signature rejected")
		}
	})

	t.Run("rejects a tampered amount", func(t *testing.T) {
		p := signedPayload()
		p.Amount = 9999
		if VerifySignature(testSecret, p) {
			t.Fatal("tampered payload accepted")
		}
	})

	t.Run("rejects a redirected order id", func(t *testing.T) {
		p := signedPayload()
		p.ReferenceID = "o-2"
		if VerifySignature(testSecret, p) {
			t.Fatal("redirected payload accepted")
		}
	})

	t.Run("rejects the wrong secret", func(t *testing.T) {
		if VerifySignature("other-secret", signedPayload()) {
			t.Fatal("foreign secret accepted")
		}
	})

	t.Run("rejects non-hex signatures", func(t *testing.T) {
		p := signedPayload()
		p.Signature = "not-hex!"
		if VerifySignature(testSecret, p) {
			t.Fatal("malformed signature accepted")
		}
	})

	t.Run("description is not part of the signing base", func(t *testing.T) {
		p := signedPayload()
		p.Description = "edited"
		if !VerifySignature(testSecret, p) {
			t.Fatal("free-text field must not invalidate the signature")
		}
	})
}
