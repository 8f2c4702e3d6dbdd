package engine_test

import (
	"encoding/base64"
	"testing"

	"github.com/daone-dadp/dadp-go/engine"
)

func TestIsCiphertextShapes(t *testing.T) {
	uuid := "123e4567-e89b-12d3-a456-426614174000"
	payload28 := base64.StdEncoding.EncodeToString(make([]byte, 28))

	legacyPayload := append([]byte(uuid), make([]byte, 64-len(uuid))...)
	legacyB64 := base64.StdEncoding.EncodeToString(legacyPayload)

	cases := map[string]bool{
		"hub:" + uuid + ":" + payload28:           true,
		"kms:" + uuid + ":" + payload28 + ":" + payload28: true,
		"vault:alias1:v3:somecipherdata":          true,
		legacyB64:                                 true,
		"plaintext value":                         false,
		"hub:not-a-uuid:abcd":                     false,
		"PLAIN::ENC::" + "hub:" + uuid + ":" + payload28: true,
	}
	for in, want := range cases {
		if got := engine.IsCiphertext(in); got != want {
			t.Errorf("IsCiphertext(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCiphertextCacheAgreesWithDetector(t *testing.T) {
	uuid := "123e4567-e89b-12d3-a456-426614174000"
	payload := base64.StdEncoding.EncodeToString(make([]byte, 28))
	ct := "hub:" + uuid + ":" + payload

	cache := engine.NewCiphertextCache(1024)
	if !cache.Recognize(ct) {
		t.Fatal("expected cache to recognize ciphertext on first pass")
	}
	if !cache.Recognize(ct) {
		t.Fatal("expected cache to recognize ciphertext on cached pass")
	}
	if cache.Recognize("plain string") {
		t.Fatal("expected cache to reject plaintext")
	}
}
