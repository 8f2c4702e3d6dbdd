package hub

import (
	"bytes"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/daone-dadp/dadp-go/cmn"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	pathRegister   = "/hub/api/instances/register"
	pathCheck      = "/hub/api/mappings/check"
	pathPolicies   = "/hub/api/policies"
	pathSchemaSync = "/hub/api/schema/sync"

	headerTenant  = "X-Tenant"
	headerVersion = "X-Current-Version"
)

// Client is the Hub control-plane client consumed by the Sync Orchestrator.
type Client interface {
	Register(instanceID string, shapeType string) (hubID string, err error)
	Check(hubID string, version uint64) (*CheckResult, error)
	PullSnapshot(alias, hubID string, version uint64) (*SnapshotResponse, bool /*notModified*/, bool /*notFound*/, error)
	SyncSchema(instanceID string, hubID string, version uint64, entries []SchemaSyncEntry) error
}

// HTTPClient is the net/http-backed Hub client. The control plane is
// low-QPS (one bootstrap + one tick per ~30s, spec.md §4.4), so it does not
// need the fasthttp connection pool the Engine Client (package engine)
// uses for its hot data-plane path.
type HTTPClient struct {
	base    string
	client  *http.Client
	timeout time.Duration
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs a Hub client bound to base (e.g. "https://hub.example").
func NewHTTPClient(base string, tlsConfig *tls.Config, timeout time.Duration) *HTTPClient {
	transport := &http.Transport{TLSClientConfig: tlsConfig}
	return &HTTPClient{
		base:    base,
		client:  &http.Client{Transport: transport, Timeout: timeout},
		timeout: timeout,
	}
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, cmn.Wrap(err, "hub: request failed")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, cmn.Wrap(err, "hub: read body")
	}
	return resp, body, nil
}

// Register implements Client: POST {hub}/.../instances/register.
func (c *HTTPClient) Register(instanceID, shapeType string) (string, error) {
	body, _ := json.Marshal(RegisterRequest{InstanceID: instanceID, Type: shapeType})
	req, err := http.NewRequest(http.MethodPost, c.base+pathRegister, bytes.NewReader(body))
	if err != nil {
		return "", cmn.Wrap(err, "hub: build register request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, respBody, err := c.do(req)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", cmn.Wrapf(ErrTransient, "hub: register status %d", resp.StatusCode)
	}
	var out RegisterResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", cmn.Wrap(err, "hub: register: malformed response")
	}
	if !out.Success {
		return "", cmn.Wrap(ErrTransient, "hub: register: not acknowledged")
	}
	return out.Data.HubID, nil
}

// Check implements Client: GET {hub}/.../mappings/check, spec.md §4.4 table.
func (c *HTTPClient) Check(hubID string, version uint64) (*CheckResult, error) {
	req, err := http.NewRequest(http.MethodGet, c.base+pathCheck, nil)
	if err != nil {
		return nil, cmn.Wrap(err, "hub: build check request")
	}
	req.Header.Set(headerTenant, hubID)
	req.Header.Set(headerVersion, strconv.FormatUint(version, 10))

	resp, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusNotModified:
		return &CheckResult{NotModified: true}, nil
	case http.StatusNotFound:
		return &CheckResult{NotFound: true}, nil
	case http.StatusOK:
		var parsed checkResponseBody
		_ = json.Unmarshal(body, &parsed)
		if parsed.Reregistered {
			return &CheckResult{Reregistered: true, NewHubID: parsed.HubID}, nil
		}
		return &CheckResult{NewerVersion: true}, nil
	default:
		return nil, cmn.Wrapf(ErrTransient, "hub: check: transient status %d", resp.StatusCode)
	}
}

// PullSnapshot implements Client: GET {hub}/.../policies?instanceId=&alias=.
func (c *HTTPClient) PullSnapshot(alias, hubID string, version uint64) (*SnapshotResponse, bool, bool, error) {
	u, err := url.Parse(c.base + pathPolicies)
	if err != nil {
		return nil, false, false, cmn.Wrap(err, "hub: build snapshot url")
	}
	q := u.Query()
	q.Set("instanceId", alias)
	q.Set("alias", alias)
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, false, cmn.Wrap(err, "hub: build snapshot request")
	}
	req.Header.Set(headerTenant, hubID)
	req.Header.Set(headerVersion, strconv.FormatUint(version, 10))

	resp, body, err := c.do(req)
	if err != nil {
		return nil, false, false, err
	}
	switch resp.StatusCode {
	case http.StatusNotModified:
		return nil, true, false, nil
	case http.StatusNotFound:
		return nil, false, true, nil
	case http.StatusOK:
		var out SnapshotResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, false, false, cmn.Wrap(err, "hub: malformed snapshot")
		}
		return &out, false, false, nil
	default:
		return nil, false, false, cmn.Wrapf(ErrTransient, "hub: snapshot: transient status %d", resp.StatusCode)
	}
}

// SyncSchema implements Client: POST {hub}/.../schema/sync.
func (c *HTTPClient) SyncSchema(instanceID, hubID string, version uint64, entries []SchemaSyncEntry) error {
	body, _ := json.Marshal(map[string]interface{}{
		"instanceId": instanceID,
		"schemas":    entries,
	})
	req, err := http.NewRequest(http.MethodPost, c.base+pathSchemaSync, bytes.NewReader(body))
	if err != nil {
		return cmn.Wrap(err, "hub: build schema/sync request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerTenant, hubID)
	req.Header.Set(headerVersion, strconv.FormatUint(version, 10))

	resp, respBody, err := c.do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return cmn.Wrapf(ErrTransient, "hub: schema/sync status %d", resp.StatusCode)
	}
	var ack struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(respBody, &ack); err != nil || !ack.Success {
		return cmn.Wrap(ErrTransient, "hub: schema/sync: not acknowledged")
	}
	return nil
}
