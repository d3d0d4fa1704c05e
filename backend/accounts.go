package backend

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nexhelm/agentflow/core"
)

// Account is an opened account record.
type Account struct {
	AccountNumber string    `json:"account_number"`
	ClientID      string    `json:"client_id"`
	AccountType   string    `json:"account_type"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// DuplicateAccountError reports an attempt to open a second account of the
// same type for a client. It carries the existing account number so the
// message can name it; the identifier is deliberately not exposed as a
// structured field of tool payloads.
type DuplicateAccountError struct {
	ClientID    string
	AccountType string
	Existing    string
}

func (e *DuplicateAccountError) Error() string {
	return fmt.Sprintf("Client %s already has a %s account: %s", e.ClientID, e.AccountType, e.Existing)
}

// AccountSystem simulates the account management system. Account numbers are
// monotonically increasing, formatted <ACCOUNT_TYPE>-<N> starting at 1000.
// The at-most-one-account-of-a-type-per-client rule is enforced atomically
// under the system's mutex, so concurrent workflows cannot both succeed.
type AccountSystem struct {
	mu       sync.Mutex
	accounts map[string]Account
	counter  int
	clock    core.Clock
}

// NewAccountSystem constructs an empty account system.
func NewAccountSystem(clock core.Clock) *AccountSystem {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &AccountSystem{accounts: map[string]Account{}, counter: 1000, clock: clock}
}

// Open creates a new account of the given type for the client. Returns a
// *DuplicateAccountError when the client already holds one of that type.
func (s *AccountSystem) Open(clientID, accountType string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.ClientID == clientID && acct.AccountType == accountType {
			return Account{}, &DuplicateAccountError{
				ClientID:    clientID,
				AccountType: accountType,
				Existing:    acct.AccountNumber,
			}
		}
	}
	number := fmt.Sprintf("%s-%d", strings.ToUpper(accountType), s.counter)
	s.counter++
	acct := Account{
		AccountNumber: number,
		ClientID:      clientID,
		AccountType:   accountType,
		Status:        "active",
		CreatedAt:     s.clock.Now(),
	}
	s.accounts[number] = acct
	return acct, nil
}

// Get returns the account with the given number and whether it exists.
func (s *AccountSystem) Get(accountNumber string) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[accountNumber]
	return acct, ok
}

// Seed installs an existing account, used by fixtures to model clients that
// already hold products. The counter advances past seeded numbers so new
// accounts never collide.
func (s *AccountSystem) Seed(acct Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acct.AccountNumber] = acct
	if n := numberSuffix(acct.AccountNumber); n >= s.counter {
		s.counter = n + 1
	}
}

// All returns a copy of every account, ordered by account number suffix.
func (s *AccountSystem) All() []Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return numberSuffix(out[i].AccountNumber) < numberSuffix(out[j].AccountNumber)
	})
	return out
}

func numberSuffix(accountNumber string) int {
	idx := strings.LastIndex(accountNumber, "-")
	if idx < 0 {
		return 0
	}
	n := 0
	for _, r := range accountNumber[idx+1:] {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
