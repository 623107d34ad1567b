package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testAuth() *HMACAuth {
	return &HMACAuth{
		Key:        "key-1234",
		Secret:     base64.StdEncoding.EncodeToString([]byte("super-secret")),
		Passphrase: "phrase",
	}
}

func TestL2HeadersAt_Deterministic(t *testing.T) {
	h := testAuth()

	a := h.L2HeadersAt("0xabc", "POST", "/order", `{"x":1}`, 1700000000)
	b := h.L2HeadersAt("0xabc", "POST", "/order", `{"x":1}`, 1700000000)
	assert.Equal(t, a, b)

	for _, k := range []string{"POLY_ADDRESS", "POLY_API_KEY", "POLY_TIMESTAMP", "POLY_PASSPHRASE", "POLY_SIGNATURE"} {
		assert.NotEmpty(t, a[k], k)
	}
	assert.Equal(t, "1700000000", a["POLY_TIMESTAMP"])
}

func TestL2HeadersAt_SignatureCoversBody(t *testing.T) {
	h := testAuth()

	a := h.L2HeadersAt("0xabc", "POST", "/order", `{"x":1}`, 1700000000)
	b := h.L2HeadersAt("0xabc", "POST", "/order", `{"x":2}`, 1700000000)
	assert.NotEqual(t, a["POLY_SIGNATURE"], b["POLY_SIGNATURE"])
}

func TestString_Redacts(t *testing.T) {
	h := testAuth()
	s := h.String()
	assert.NotContains(t, s, h.Secret)
	assert.Contains(t, s, "****")
}
