package engine

import (
	"bytes"
	"crypto/tls"
	"strings"
	"time"

	"github.com/pierrec/lz4/v3"
	"github.com/valyala/fasthttp"

	"github.com/daone-dadp/dadp-go/cmn"
	"github.com/daone-dadp/dadp-go/metrics"
)

func observeCall(op string, err error) {
	outcome := "success"
	switch {
	case err == ErrNotEncrypted:
		outcome = "sentinel"
	case err != nil:
		outcome = "error"
	}
	metrics.EngineCalls.WithLabelValues(op, outcome).Inc()
}

// hubControlSegment is the Hub control-plane API base path (§6); a crypto
// base path resolving to it is rejected at construction (spec.md §3
// EndpointRouting invariant, §4.3).
const hubControlSegment = "/hub/api"

// HTTPClient is the fasthttp-backed Engine Client (EC): the Engine
// data-plane is IE's hot path (~35%+~12% of the system, §2), so it uses
// fasthttp's connection-pooled client rather than net/http (§3.1 DOMAIN
// STACK), in contrast to the low-QPS Hub control-plane client in package hub.
type HTTPClient struct {
	base        string
	client      *fasthttp.Client
	timeout     time.Duration
	compressMin int // compress request bodies >= this many bytes with lz4; 0 disables
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs an EC bound to base (e.g. "https://crypto.example/api/v1").
// Construction fails if base resolves to the Hub's own control segment
// (spec.md §3/§4.3) — the cryptoUrl is opaque to PS/PR and must never be
// pointed at the Hub's "direct encrypt" path.
func NewHTTPClient(base string, tlsConfig *tls.Config, timeout time.Duration, compressMin int) (*HTTPClient, error) {
	if strings.Contains(base, hubControlSegment) {
		return nil, cmn.ErrHubControlSegment
	}
	c := &fasthttp.Client{
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	if tlsConfig != nil {
		c.TLSConfig = tlsConfig
	}
	return &HTTPClient{base: strings.TrimRight(base, "/"), client: c, timeout: timeout, compressMin: compressMin}, nil
}

func (c *HTTPClient) url(path string) string { return c.base + path }

func (c *HTTPClient) post(path string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url(path))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")

	if c.compressMin > 0 && len(body) >= c.compressMin {
		compressed, err := lz4Compress(body)
		if err == nil {
			req.Header.Set("Content-Encoding", "lz4")
			req.SetBody(compressed)
		} else {
			req.SetBody(body)
		}
	} else {
		req.SetBody(body)
	}

	if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
		return 0, nil, cmn.Wrap(ErrConnection, "engine: "+err.Error())
	}
	status := resp.StatusCode()
	respBody := append([]byte(nil), resp.Body()...)
	return status, respBody, nil
}

func lz4Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encrypt implements Client.
func (c *HTTPClient) Encrypt(data, policyName string, forSearch bool) (string, error) {
	reqBody, _ := json.Marshal(map[string]interface{}{
		"data":       data,
		"policyName": policyName,
		"forSearch":  forSearch,
	})
	status, respBody, err := c.post("/encrypt", reqBody)
	if err != nil {
		observeCall("encrypt", err)
		return "", err
	}
	result, err := parseEnvelope(status, respBody)
	observeCall("encrypt", err)
	return result, err
}

// Decrypt implements Client.
func (c *HTTPClient) Decrypt(data, policyName, maskPolicyName, maskPolicyUID string) (string, error) {
	payload := map[string]interface{}{"encryptedData": data}
	if policyName != "" {
		payload["policyName"] = policyName
	}
	if maskPolicyName != "" {
		payload["maskPolicyName"] = maskPolicyName
	}
	if maskPolicyUID != "" {
		payload["maskPolicyUid"] = maskPolicyUID
	}
	reqBody, _ := json.Marshal(payload)
	status, respBody, err := c.post("/decrypt", reqBody)
	if err != nil {
		observeCall("decrypt", err)
		return "", err
	}
	result, err := parseEnvelope(status, respBody)
	observeCall("decrypt", err)
	return result, err
}

// EncryptBatch implements Client.
func (c *HTTPClient) EncryptBatch(items []BatchEncryptItem) ([]BatchResult, error) {
	rows := make([]map[string]interface{}, len(items))
	for i, it := range items {
		row := map[string]interface{}{"data": it.Data}
		if it.PolicyName != "" {
			row["policyName"] = it.PolicyName
		}
		rows[i] = row
	}
	reqBody, _ := json.Marshal(map[string]interface{}{"items": rows})
	status, respBody, err := c.post("/encrypt/batch", reqBody)
	if err != nil {
		observeCall("encrypt_batch", err)
		return nil, err
	}
	if status < 200 || status >= 300 {
		err := cmn.Wrapf(ErrConnection, "encrypt/batch: status %d", status)
		observeCall("encrypt_batch", err)
		return nil, err
	}
	result, err := parseBatchEncryptResponse(respBody)
	observeCall("encrypt_batch", err)
	return result, err
}

// DecryptBatch implements Client.
func (c *HTTPClient) DecryptBatch(items []BatchDecryptItem) ([]BatchResult, error) {
	rows := make([]map[string]interface{}, len(items))
	for i, it := range items {
		row := map[string]interface{}{"data": it.Data}
		if it.MaskPolicyName != "" {
			row["maskPolicyName"] = it.MaskPolicyName
		}
		if it.MaskPolicyUID != "" {
			row["maskPolicyUid"] = it.MaskPolicyUID
		}
		rows[i] = row
	}
	reqBody, _ := json.Marshal(map[string]interface{}{"items": rows})
	status, respBody, err := c.post("/decrypt/batch", reqBody)
	if err != nil {
		observeCall("decrypt_batch", err)
		return nil, err
	}
	if status < 200 || status >= 300 {
		err := cmn.Wrapf(ErrConnection, "decrypt/batch: status %d", status)
		observeCall("decrypt_batch", err)
		return nil, err
	}
	result, err := parseBatchDecryptResponse(respBody)
	observeCall("decrypt_batch", err)
	return result, err
}
