package store_test

import (
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/daone-dadp/dadp-go/cmn"
	"github.com/daone-dadp/dadp-go/store"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "store suite")
}

func keyOf(e store.SchemaEntry) string {
	return cmn.ColumnKey(e.DatasourceID, e.SchemaName, e.TableName, e.ColumnName)
}

var _ = Describe("Persistent Store", func() {
	var dir string
	var s *store.Store

	BeforeEach(func() {
		dir = filepath.Join(GinkgoT().TempDir(), "dadp-store")
		s = store.Open(dir)
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
	})

	It("round-trips InstanceIdentity", func() {
		id, err := s.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(BeNil())

		want := &store.InstanceIdentity{HubID: "H1", HubBaseURL: "https://hub.example", Alias: "alias-1"}
		Expect(s.SaveConfig(want)).To(Succeed())

		got, err := s.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(got.HubID).To(Equal("H1"))
		Expect(got.Alias).To(Equal("alias-1"))
	})

	It("round-trips a PolicySnapshot", func() {
		snap := &store.PolicySnapshot{
			Version: 7,
			Mappings: []store.Mapping{
				{SchemaName: "public", TableName: "users", ColumnName: "email", PolicyName: "p1", Enabled: true},
			},
			Attributes: map[string]store.PolicyAttributes{"p1": {UseIV: true}},
		}
		Expect(s.SavePolicy(snap)).To(Succeed())

		got, err := s.LoadPolicy()
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Version).To(Equal(uint64(7)))
		Expect(got.Mappings).To(HaveLen(1))
	})

	It("implements compareAndUpdate union-by-key semantics", func() {
		first := []store.SchemaEntry{
			{SchemaName: "public", TableName: "users", ColumnName: "email"},
		}
		n, err := s.CompareAndUpdate(first, keyOf)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		created, err := s.GetCreated()
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(HaveLen(1))

		key := keyOf(created[0])
		updated, err := s.UpdateStatus([]string{key}, store.SchemaRegistered)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated).To(Equal(1))

		// Re-running compareAndUpdate with the same fresh set must not
		// regress status back to CREATED (§9 Open Question #2).
		n, err = s.CompareAndUpdate(first, keyOf)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(0))

		created, err = s.GetCreated()
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeEmpty())

		all, err := s.LoadSchemas()
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(1))
		Expect(all[0].Status).To(Equal(store.SchemaRegistered))
	})
})
