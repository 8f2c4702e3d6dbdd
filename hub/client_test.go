package hub_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/daone-dadp/dadp-go/hub"
)

func TestHub(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Hub Client")
}

var _ = Describe("Hub HTTP Client", func() {
	var (
		srv    *httptest.Server
		client *hub.HTTPClient
		mux    *http.ServeMux
	)

	BeforeEach(func() {
		mux = http.NewServeMux()
		srv = httptest.NewServer(mux)
		client = hub.NewHTTPClient(srv.URL, nil, 2*time.Second)
	})

	AfterEach(func() {
		srv.Close()
	})

	It("registers and returns the hub id", func() {
		mux.HandleFunc("/hub/api/instances/register", func(w http.ResponseWriter, r *http.Request) {
			var req hub.RegisterRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			Expect(req.InstanceID).To(Equal("inst-1"))
			Expect(req.Type).To(Equal("aop"))
			_ = json.NewEncoder(w).Encode(hub.RegisterResponse{
				Success: true,
				Data:    struct {
					HubID string `json:"hubId"`
				}{HubID: "hub-abc"},
			})
		})

		id, err := client.Register("inst-1", "aop")
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal("hub-abc"))
	})

	It("interprets 304 on check as not modified", func() {
		mux.HandleFunc("/hub/api/mappings/check", func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Header.Get("X-Tenant")).To(Equal("hub-abc"))
			w.WriteHeader(http.StatusNotModified)
		})

		res, err := client.Check("hub-abc", 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.NotModified).To(BeTrue())
	})

	It("interprets 404 on check as not found", func() {
		mux.HandleFunc("/hub/api/mappings/check", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		res, err := client.Check("hub-abc", 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.NotFound).To(BeTrue())
	})

	It("interprets a reregistered body as such", func() {
		mux.HandleFunc("/hub/api/mappings/check", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"reregistered": true, "hubId": "hub-new"})
		})

		res, err := client.Check("hub-abc", 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Reregistered).To(BeTrue())
		Expect(res.NewHubID).To(Equal("hub-new"))
	})

	It("pulls a policy snapshot", func() {
		mux.HandleFunc("/hub/api/policies", func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Query().Get("alias")).To(Equal("alias-1"))
			_ = json.NewEncoder(w).Encode(hub.SnapshotResponse{
				Version: 3,
				Mappings: []hub.SnapshotMapping{
					{SchemaName: "public", TableName: "users", ColumnName: "ssn", PolicyName: "pii", Enabled: true},
				},
				Endpoint: &hub.SnapshotEndpoint{CryptoURL: "https://crypto.example/api"},
			})
		})

		snap, notModified, notFound, err := client.PullSnapshot("alias-1", "hub-abc", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(notModified).To(BeFalse())
		Expect(notFound).To(BeFalse())
		Expect(snap.Version).To(BeEquivalentTo(3))
		Expect(snap.Mappings).To(HaveLen(1))
		Expect(snap.Endpoint.CryptoURL).To(Equal("https://crypto.example/api"))
	})

	It("reports snapshot not-modified on 304", func() {
		mux.HandleFunc("/hub/api/policies", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotModified)
		})

		_, notModified, notFound, err := client.PullSnapshot("alias-1", "hub-abc", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(notModified).To(BeTrue())
		Expect(notFound).To(BeFalse())
	})

	It("acknowledges schema sync", func() {
		mux.HandleFunc("/hub/api/schema/sync", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			Expect(body["instanceId"]).To(Equal("inst-1"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
		})

		err := client.SyncSchema("inst-1", "hub-abc", 1, []hub.SchemaSyncEntry{
			{SchemaName: "public", TableName: "users", ColumnName: "ssn"},
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("surfaces an error when schema sync is not acknowledged", func() {
		mux.HandleFunc("/hub/api/schema/sync", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false})
		})

		err := client.SyncSchema("inst-1", "hub-abc", 1, nil)
		Expect(err).To(HaveOccurred())
	})
})
