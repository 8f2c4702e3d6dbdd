package intercept_test

import (
	"reflect"
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/daone-dadp/dadp-go/cmn"
	ecpkg "github.com/daone-dadp/dadp-go/engine"
	"github.com/daone-dadp/dadp-go/intercept"
	"github.com/daone-dadp/dadp-go/policy"
	"github.com/daone-dadp/dadp-go/store"
)

func TestIntercept(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Interception Engine")
}

type user struct {
	ID  int
	SSN string `dadp:"encrypt"`
	Bio string `dadp:"encrypt,column=biography"`
}

type tableMap struct{}

func (tableMap) TableFor(t reflect.Type) (string, string, bool) {
	if t == reflect.TypeOf(user{}) {
		return "public", "users", true
	}
	return "", "", false
}

type fakeEC struct {
	encryptCalls int
	decryptCalls int
	batchCalls   int
}

func (f *fakeEC) Encrypt(data, policyName string, forSearch bool) (string, error) {
	f.encryptCalls++
	return "hub:123e4567-e89b-12d3-a456-426614174000:" + data, nil
}

func (f *fakeEC) Decrypt(data, policyName, maskName, maskUID string) (string, error) {
	f.decryptCalls++
	if maskName != "" {
		return "masked", nil
	}
	return data[len("hub:123e4567-e89b-12d3-a456-426614174000:"):], nil
}

func (f *fakeEC) EncryptBatch(items []ecpkg.BatchEncryptItem) ([]ecpkg.BatchResult, error) {
	f.batchCalls++
	out := make([]ecpkg.BatchResult, len(items))
	for i, it := range items {
		out[i] = ecpkg.BatchResult{Success: true, Value: "hub:123e4567-e89b-12d3-a456-426614174000:" + it.Data}
	}
	return out, nil
}

func (f *fakeEC) DecryptBatch(items []ecpkg.BatchDecryptItem) ([]ecpkg.BatchResult, error) {
	f.batchCalls++
	out := make([]ecpkg.BatchResult, len(items))
	for i, it := range items {
		out[i] = ecpkg.BatchResult{Success: true, Value: it.Data[len("hub:123e4567-e89b-12d3-a456-426614174000:"):]}
	}
	return out, nil
}

type fakeSession struct {
	detached   []interface{}
	readOnly   []interface{}
}

func (f *fakeSession) Detach(e interface{})     { f.detached = append(f.detached, e) }
func (f *fakeSession) MarkReadOnly(e interface{}) { f.readOnly = append(f.readOnly, e) }

var _ = Describe("Interception Engine", func() {
	var (
		cfg *cmn.Config
		pr  *policy.Resolver
		ec  *fakeEC
		ie  *intercept.Engine
	)

	BeforeEach(func() {
		cfg = cmn.Defaults(cmn.ShapeAOP)
		cfg.BatchMinSize = 2
		pr = policy.New(nil)
		Expect(pr.Refresh([]store.Mapping{
			{SchemaName: "public", TableName: "users", ColumnName: "ssn", PolicyName: "pii", Enabled: true},
		}, nil, 1)).To(Succeed())
		ec = &fakeEC{}
		ie = intercept.New(pr, func() ecpkg.Client { return ec }, tableMap{}, cfg)
	})

	It("encrypts target fields on a single entity write", func() {
		u := &user{ID: 1, SSN: "123-45-6789", Bio: "hello"}
		_, err := ie.OnEncryptCall(intercept.CallOptions{}, u, func(arg interface{}) (interface{}, error) {
			return arg, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(u.SSN).To(HavePrefix("hub:"))
		Expect(u.Bio).To(HavePrefix("hub:"))
		Expect(ec.encryptCalls).To(Equal(2))
	})

	It("skips already-ciphertext values on write (idempotence)", func() {
		u := &user{SSN: "hub:123e4567-e89b-12d3-a456-426614174000:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"}
		_, err := ie.OnEncryptCall(intercept.CallOptions{}, u, func(arg interface{}) (interface{}, error) {
			return arg, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ec.encryptCalls).To(Equal(0))
	})

	It("batches collection writes once the group meets the threshold", func() {
		users := []*user{{SSN: "a"}, {SSN: "b"}, {SSN: "c"}}
		_, err := ie.OnEncryptCall(intercept.CallOptions{Fields: []string{"ssn"}}, users, func(arg interface{}) (interface{}, error) {
			return arg, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ec.batchCalls).To(Equal(1))
		for _, u := range users {
			Expect(u.SSN).To(HavePrefix("hub:"))
		}
	})

	It("quarantines entities before decrypting on the read path", func() {
		session := &fakeSession{}
		ie.Session = session
		u := &user{SSN: "hub:123e4567-e89b-12d3-a456-426614174000:123-45-6789"}
		result, err := ie.OnDecryptCall(intercept.CallOptions{}, func() (interface{}, error) {
			return u, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(session.detached).To(ContainElement(u))
		Expect(result.(*user).SSN).To(Equal("123-45-6789"))
	})

	It("rewraps a decrypted collection back into its original slice type", func() {
		users := []*user{
			{ID: 1, SSN: "hub:123e4567-e89b-12d3-a456-426614174000:111-11-1111"},
			{ID: 2, SSN: "hub:123e4567-e89b-12d3-a456-426614174000:222-22-2222"},
		}
		result, err := ie.OnDecryptCall(intercept.CallOptions{}, func() (interface{}, error) {
			return users, nil
		})
		Expect(err).NotTo(HaveOccurred())

		out, ok := result.([]*user)
		Expect(ok).To(BeTrue(), "expected []*user, got %T", result)
		Expect(out).To(Equal(users))
		Expect(out[0].SSN).To(Equal("111-11-1111"))
		Expect(out[1].SSN).To(Equal("222-22-2222"))
	})

	It("fails closed with ErrTenantMissing when no hub id has been resolved and failOpen is off", func() {
		cfg.FailOpen = false
		ie.HubID = func() string { return "" }

		proceedCalled := false
		_, err := ie.OnEncryptCall(intercept.CallOptions{}, &user{SSN: "123-45-6789"}, func(arg interface{}) (interface{}, error) {
			proceedCalled = true
			return arg, nil
		})
		Expect(err).To(MatchError(cmn.ErrTenantMissing))
		Expect(proceedCalled).To(BeFalse())

		_, err = ie.OnDecryptCall(intercept.CallOptions{}, func() (interface{}, error) {
			proceedCalled = true
			return &user{SSN: "plaintext"}, nil
		})
		Expect(err).To(MatchError(cmn.ErrTenantMissing))
		Expect(proceedCalled).To(BeFalse())
	})

	It("proceeds without a hub id when failOpen is on", func() {
		cfg.FailOpen = true
		ie.HubID = func() string { return "" }

		u := &user{SSN: "123-45-6789"}
		_, err := ie.OnEncryptCall(intercept.CallOptions{}, u, func(arg interface{}) (interface{}, error) {
			return arg, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(u.SSN).To(HavePrefix("hub:"))
	})

	It("leaves the value unchanged when not-encrypted is returned", func() {
		plainEC := &fakeEC{}
		ie2 := intercept.New(pr, func() ecpkg.Client { return plainDecryptEC{} }, tableMap{}, cfg)
		_ = plainEC
		u := &user{SSN: "plaintext"}
		result, err := ie2.OnDecryptCall(intercept.CallOptions{}, func() (interface{}, error) {
			return u, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.(*user).SSN).To(Equal("plaintext"))
	})
})

type plainDecryptEC struct{}

func (plainDecryptEC) Encrypt(data, policyName string, forSearch bool) (string, error) { return data, nil }
func (plainDecryptEC) Decrypt(data, policyName, maskName, maskUID string) (string, error) {
	return "", ecpkg.ErrNotEncrypted
}
func (plainDecryptEC) EncryptBatch(items []ecpkg.BatchEncryptItem) ([]ecpkg.BatchResult, error) {
	return nil, nil
}
func (plainDecryptEC) DecryptBatch(items []ecpkg.BatchDecryptItem) ([]ecpkg.BatchResult, error) {
	return nil, nil
}
