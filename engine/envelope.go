package engine

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// envelope is the loose shape of a single encrypt/decrypt response. The
// Engine's "data" field may be either a bare string or an object carrying
// encryptedData/decryptedData — spec.md §4.3 envelope parsing rule — so
// Data is decoded twice: once as a raw string, once as the nested object,
// and whichever succeeds wins.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    jsoniter.RawMessage `json:"data"`
}

type nestedData struct {
	EncryptedData string `json:"encryptedData"`
	DecryptedData string `json:"decryptedData"`
}

// parseEnvelope extracts the inner string result from body, classifying the
// outcome per spec.md §3/§7:
//   - not-encrypted sentinel anywhere in body -> ErrNotEncrypted (independent of status/success)
//   - non-2xx status otherwise -> ("", ErrConnection)
//   - success:true -> (value, nil)
//   - success:false with non-empty decryptedData -> (value, nil), "mask applied" (spec.md §4.5.5)
//   - success:false otherwise -> ("", ErrPolicy)
func parseEnvelope(status int, body []byte) (string, error) {
	if strings.Contains(string(body), notEncryptedSentinel) {
		return "", ErrNotEncrypted
	}
	if status < 200 || status >= 300 {
		return "", ErrConnection
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", ErrConnection
	}

	var asString string
	if err := json.Unmarshal(env.Data, &asString); err == nil && asString != "" {
		if env.Success {
			return asString, nil
		}
	}

	var nested nestedData
	if err := json.Unmarshal(env.Data, &nested); err == nil {
		value := nested.EncryptedData
		if value == "" {
			value = nested.DecryptedData
		}
		if env.Success && value != "" {
			return value, nil
		}
		if !env.Success && nested.DecryptedData != "" {
			// success:false with a non-empty decryptedData is the Engine's
			// "mask applied" convention (spec.md §4.5.5): still written back.
			return nested.DecryptedData, nil
		}
	}

	if env.Success {
		return asString, nil
	}
	return "", ErrPolicy
}
