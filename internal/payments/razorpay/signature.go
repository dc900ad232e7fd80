package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// ExpectedSignature computes HMAC-SHA256(secret, orderID + "|" + paymentID),
// hex encoded, which is what the gateway sends back after client-side capture.
func ExpectedSignature(secret, orderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares the supplied signature against the expected one.
func (c *Client) VerifySignature(orderID, gatewayPaymentID, signature string) bool {
	expected := ExpectedSignature(c.keySecret, orderID, gatewayPaymentID)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
