package backend

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountNumbersAreMonotonic(t *testing.T) {
	sys := NewAccountSystem(nil)

	a1, err := sys.Open("c1", "roth_ira")
	require.NoError(t, err)
	a2, err := sys.Open("c2", "roth_ira")
	require.NoError(t, err)

	assert.Equal(t, "ROTH_IRA-1000", a1.AccountNumber)
	assert.Equal(t, "ROTH_IRA-1001", a2.AccountNumber)
	assert.Equal(t, "active", a1.Status)
}

func TestDuplicateAccountTypeIsRejected(t *testing.T) {
	sys := NewAccountSystem(nil)

	first, err := sys.Open("c1", "roth_ira")
	require.NoError(t, err)

	_, err = sys.Open("c1", "roth_ira")
	require.Error(t, err)
	var dup *DuplicateAccountError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.AccountNumber, dup.Existing)
	assert.Contains(t, err.Error(), first.AccountNumber)

	// A different type is still allowed.
	_, err = sys.Open("c1", "traditional_ira")
	assert.NoError(t, err)
}

func TestAccountUniquenessUnderConcurrency(t *testing.T) {
	sys := NewAccountSystem(nil)

	const attempts = 32
	var wg sync.WaitGroup
	okCount := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := sys.Open("c1", "roth_ira"); err == nil {
				okCount <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(okCount)

	n := 0
	for range okCount {
		n++
	}
	assert.Equal(t, 1, n, "exactly one concurrent open may succeed")
}

func TestSeedAdvancesCounter(t *testing.T) {
	sys := NewAccountSystem(nil)
	sys.Seed(Account{AccountNumber: "ROTH_IRA-1001", ClientID: "c2", AccountType: "roth_ira"})

	a, err := sys.Open("c3", "roth_ira")
	require.NoError(t, err)
	assert.Equal(t, "ROTH_IRA-1002", a.AccountNumber)

	_, err = sys.Open("c2", "roth_ira")
	assert.Error(t, err)
}

func TestNormalizeDocType(t *testing.T) {
	cases := map[string]string{
		"driver's license": DocDriversLicense,
		"Drivers License":  DocDriversLicense,
		"tax return":       DocTaxReturn,
		"income statement": DocTaxReturn,
		"IRA form":         DocIRAApplication,
		"ira_application":  DocIRAApplication,
		"roth_ira":         DocIRAApplication,
		"passport":         "passport",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeDocType(in), in)
	}
}

func TestDocumentStoreUpsertAndUpdate(t *testing.T) {
	s := NewDocumentStore(nil)

	_, ok := s.Get("c1", "tax return")
	assert.False(t, ok)
	assert.False(t, s.Update("c1", "tax return", Document{"income": 1}))

	s.Put("c1", "tax return", Document{"income": 120000, "year": 2023})
	doc, ok := s.Get("c1", DocTaxReturn)
	require.True(t, ok)
	assert.Equal(t, 120000, doc["income"])

	require.True(t, s.Update("c1", "tax_return", Document{"income": 130000}))
	doc, _ = s.Get("c1", "tax return")
	assert.Equal(t, 130000, doc["income"])
	assert.Equal(t, 2023, doc["year"])

	// Returned documents are copies.
	doc["income"] = 0
	again, _ := s.Get("c1", "tax return")
	assert.Equal(t, 130000, again["income"])
}

func TestNotifierAppendsInOrder(t *testing.T) {
	n := NewNotifier(nil)
	n.Send("c1", "form_sent", "your form is on its way")
	n.Send("c1", "account_opened", "your account is ready")

	log := n.Log()
	require.Len(t, log, 2)
	assert.Equal(t, "form_sent", log[0].Type)
	assert.Equal(t, "account_opened", log[1].Type)
}

func TestLoadFixturesFromYAML(t *testing.T) {
	const doc = `
clients:
  c4:
    name: Carla Osei
    age: 41
    income: 90000
    existing_accounts: [checking]
documents:
  c4:
    tax_return:
      status: valid
      income: 90000
      year: 2022
accounts:
  - account_number: ROTH_IRA-1001
    client_id: c4
    account_type: roth_ira
`
	set, err := LoadFixtures(strings.NewReader(doc), nil)
	require.NoError(t, err)

	client, ok := set.CRM.GetClient("c4")
	require.True(t, ok)
	assert.Equal(t, "Carla Osei", client.Name)
	assert.Equal(t, 90000, client.Income)

	tax, ok := set.Documents.Get("c4", "tax return")
	require.True(t, ok)
	assert.Equal(t, 2022, tax["year"])

	acct, ok := set.Accounts.Get("ROTH_IRA-1001")
	require.True(t, ok)
	assert.Equal(t, "active", acct.Status)

	_, err = set.Accounts.Open("c4", "roth_ira")
	assert.Error(t, err)
}

func TestDemoSetSeedsKnownClients(t *testing.T) {
	set := DemoSet(nil)
	_, ok := set.CRM.GetClient("john_smith_123")
	assert.True(t, ok)
	docs := set.Documents.List("test_client_complete")
	assert.Contains(t, docs, DocTaxReturn)
}
