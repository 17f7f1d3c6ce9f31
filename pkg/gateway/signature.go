package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PaymentSignature is the checkout callback signature: hex(HMAC-SHA256(secret, orderID|paymentID)).
func PaymentSignature(secret, orderID, paymentID string) string {
	return sign(secret, []byte(orderID+"|"+paymentID))
}

// VerifyPaymentSignature recomputes the callback signature and compares in constant time.
func VerifyPaymentSignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || orderID == "" || paymentID == "" {
		return false
	}
	return equalHex(PaymentSignature(secret, orderID, paymentID), signature)
}

// WebhookSignature signs a raw webhook body.
func WebhookSignature(secret string, body []byte) string {
	return sign(secret, body)
}

// VerifyWebhookSignature checks a webhook body against its signature header.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || len(body) == 0 {
		return false
	}
	return equalHex(WebhookSignature(secret, body), signature)
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func equalHex(expected, supplied string) bool {
	want, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(supplied)))
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}
