package backend

import "sync"

// Client is a CRM record.
type Client struct {
	Name             string   `json:"name" yaml:"name"`
	Age              int      `json:"age" yaml:"age"`
	Email            string   `json:"email" yaml:"email"`
	Income           int      `json:"income" yaml:"income"`
	ExistingAccounts []string `json:"existing_accounts" yaml:"existing_accounts"`
}

// CRM simulates the customer relationship system. The engine treats it as
// read-mostly; the only mutation exposed is a single-field update.
type CRM struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewCRM constructs a CRM seeded with the given clients.
func NewCRM(clients map[string]Client) *CRM {
	if clients == nil {
		clients = map[string]Client{}
	}
	return &CRM{clients: clients}
}

// GetClient returns the client record and whether it exists.
func (c *CRM) GetClient(clientID string) (Client, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.clients[clientID]
	return cl, ok
}

// UpdateClient sets one field of a client record. Returns false when the
// client or field is unknown.
func (c *CRM) UpdateClient(clientID, field string, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.clients[clientID]
	if !ok {
		return false
	}
	switch field {
	case "name":
		s, ok := value.(string)
		if !ok {
			return false
		}
		cl.Name = s
	case "email":
		s, ok := value.(string)
		if !ok {
			return false
		}
		cl.Email = s
	case "age":
		n, ok := asInt(value)
		if !ok {
			return false
		}
		cl.Age = n
	case "income":
		n, ok := asInt(value)
		if !ok {
			return false
		}
		cl.Income = n
	default:
		return false
	}
	c.clients[clientID] = cl
	return true
}

// asInt accepts the numeric shapes JSON decoding produces.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
