package policy_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/daone-dadp/dadp-go/policy"
	"github.com/daone-dadp/dadp-go/store"
)

func TestPolicy(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "policy suite")
}

type fakePersister struct {
	saved *store.PolicySnapshot
}

func (f *fakePersister) SavePolicy(s *store.PolicySnapshot) error { f.saved = s; return nil }
func (f *fakePersister) LoadPolicy() (*store.PolicySnapshot, error) { return f.saved, nil }

var _ = Describe("Policy Resolver", func() {
	var ps *fakePersister
	var r *policy.Resolver

	BeforeEach(func() {
		ps = &fakePersister{}
		r = policy.New(ps)
	})

	It("has no version before first refresh", func() {
		_, ok := r.CurrentVersion()
		Expect(ok).To(BeFalse())
	})

	It("drops disabled and policy-less mappings silently", func() {
		err := r.Refresh([]store.Mapping{
			{SchemaName: "public", TableName: "users", ColumnName: "email", PolicyName: "p1", Enabled: true},
			{SchemaName: "public", TableName: "users", ColumnName: "ssn", PolicyName: "p2", Enabled: false},
			{SchemaName: "public", TableName: "users", ColumnName: "dob", PolicyName: "", Enabled: true},
		}, nil, 1)
		Expect(err).NotTo(HaveOccurred())

		_, ok := r.Resolve("", "public", "users", "email")
		Expect(ok).To(BeTrue())
		_, ok = r.Resolve("", "public", "users", "ssn")
		Expect(ok).To(BeFalse())
		_, ok = r.Resolve("", "public", "users", "dob")
		Expect(ok).To(BeFalse())
	})

	It("resolves most-specific key first, case-insensitively", func() {
		Expect(r.Refresh([]store.Mapping{
			{DatasourceID: "ds1", SchemaName: "Public", TableName: "Users", ColumnName: "Email", PolicyName: "specific", Enabled: true},
			{SchemaName: "public", TableName: "users", ColumnName: "email", PolicyName: "general", Enabled: true},
		}, nil, 2)).To(Succeed())

		name, ok := r.Resolve("ds1", "Public", "Users", "Email")
		Expect(ok).To(BeTrue())
		Expect(name).To(Equal("specific"))

		name, ok = r.Resolve("", "PUBLIC", "USERS", "EMAIL")
		Expect(ok).To(BeTrue())
		Expect(name).To(Equal("general"))
	})

	It("returns default attributes for an unknown policy", func() {
		attrs := r.GetAttributes("nope")
		Expect(attrs).To(Equal(store.DefaultPolicyAttributes()))
	})

	It("is idempotent across repeated identical refreshes", func() {
		mappings := []store.Mapping{
			{SchemaName: "public", TableName: "users", ColumnName: "email", PolicyName: "p1", Enabled: true},
		}
		Expect(r.Refresh(mappings, nil, 5)).To(Succeed())
		v1, _ := r.CurrentVersion()
		name1, _ := r.Resolve("", "public", "users", "email")

		Expect(r.Refresh(mappings, nil, 5)).To(Succeed())
		v2, _ := r.CurrentVersion()
		name2, _ := r.Resolve("", "public", "users", "email")

		Expect(v2).To(Equal(v1))
		Expect(name2).To(Equal(name1))
	})

	It("persists every refresh synchronously to the store", func() {
		Expect(r.Refresh([]store.Mapping{
			{SchemaName: "public", TableName: "users", ColumnName: "email", PolicyName: "p1", Enabled: true},
		}, nil, 9)).To(Succeed())
		Expect(ps.saved).NotTo(BeNil())
		Expect(ps.saved.Version).To(Equal(uint64(9)))
	})
})
