package backend

import (
	"fmt"
	"io"
	"os"

	"github.com/nexhelm/agentflow/core"
	"gopkg.in/yaml.v3"
)

// Set bundles the four backends. Inject a Set into the tool registry rather
// than reaching for globals so tests can substitute fixtures.
type Set struct {
	CRM       *CRM
	Documents *DocumentStore
	Accounts  *AccountSystem
	Notifier  *Notifier
}

// NewSet builds an empty backend set on the given clock.
func NewSet(clock core.Clock) *Set {
	return &Set{
		CRM:       NewCRM(nil),
		Documents: NewDocumentStore(nil),
		Accounts:  NewAccountSystem(clock),
		Notifier:  NewNotifier(clock),
	}
}

// Fixtures is the YAML shape consumed by LoadFixtures.
type Fixtures struct {
	Clients   map[string]Client              `yaml:"clients"`
	Documents map[string]map[string]Document `yaml:"documents"`
	Accounts  []struct {
		AccountNumber string `yaml:"account_number"`
		ClientID      string `yaml:"client_id"`
		AccountType   string `yaml:"account_type"`
		Status        string `yaml:"status"`
	} `yaml:"accounts"`
}

// LoadFixtures reads fixture YAML and seeds a fresh backend set from it.
func LoadFixtures(r io.Reader, clock core.Clock) (*Set, error) {
	var fx Fixtures
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return NewSetFromFixtures(fx, clock), nil
}

// LoadFixturesFile reads fixture YAML from a file path.
func LoadFixturesFile(path string, clock core.Clock) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()
	return LoadFixtures(f, clock)
}

// NewSetFromFixtures seeds a backend set from already-decoded fixtures.
func NewSetFromFixtures(fx Fixtures, clock core.Clock) *Set {
	if clock == nil {
		clock = core.SystemClock{}
	}
	set := &Set{
		CRM:       NewCRM(fx.Clients),
		Documents: NewDocumentStore(fx.Documents),
		Accounts:  NewAccountSystem(clock),
		Notifier:  NewNotifier(clock),
	}
	for _, a := range fx.Accounts {
		status := a.Status
		if status == "" {
			status = "active"
		}
		set.Accounts.Seed(Account{
			AccountNumber: a.AccountNumber,
			ClientID:      a.ClientID,
			AccountType:   a.AccountType,
			Status:        status,
			CreatedAt:     clock.Now(),
		})
	}
	return set
}

// DemoSet returns a backend set seeded with the demo clients used by the
// examples: an established client holding checking and brokerage accounts
// and a new client with no accounts. Both have a valid driver's license, a
// 2023 tax return and a signed, submitted IRA application on file.
func DemoSet(clock core.Clock) *Set {
	return NewSetFromFixtures(Fixtures{
		Clients: map[string]Client{
			"john_smith_123": {
				Name:             "John Smith",
				Age:              45,
				Email:            "john@example.com",
				Income:           145000,
				ExistingAccounts: []string{"checking", "brokerage"},
			},
			"test_client_complete": {
				Name:             "Test Client Complete",
				Age:              35,
				Email:            "test@example.com",
				Income:           120000,
				ExistingAccounts: []string{},
			},
		},
		Documents: map[string]map[string]Document{
			"john_smith_123": {
				DocDriversLicense: {"status": "valid", "uploaded": true, "verified": true},
				DocTaxReturn:      {"status": "valid", "income": 145000, "year": 2023},
				DocIRAApplication: {"status": "submitted", "signature_page3": true, "submitted": true},
			},
			"test_client_complete": {
				DocDriversLicense: {"status": "valid", "uploaded": true, "verified": true},
				DocTaxReturn:      {"status": "valid", "income": 120000, "year": 2023},
				DocIRAApplication: {"status": "submitted", "signature_page3": true, "submitted": true},
			},
		},
	}, clock)
}
