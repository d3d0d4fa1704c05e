package tool

import (
	"strings"
	"time"

	"github.com/nexhelm/agentflow/backend"
	"github.com/nexhelm/agentflow/bus"
	"github.com/nexhelm/agentflow/core"
)

// Roth IRA single-filer income limit used by the eligibility check.
const rothIRAIncomeLimit = 161000

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func clientPayload(id string, c backend.Client) map[string]any {
	return map[string]any{
		"client_id":         id,
		"name":              c.Name,
		"age":               c.Age,
		"email":             c.Email,
		"income":            c.Income,
		"existing_accounts": append([]string(nil), c.ExistingAccounts...),
	}
}

func accountPayload(a backend.Account) map[string]any {
	return map[string]any{
		"account_number": a.AccountNumber,
		"account_type":   a.AccountType,
		"status":         a.Status,
		"created_at":     a.CreatedAt.Format(time.RFC3339),
	}
}

var clientIDSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"client_id": map[string]any{"type": "string"},
	},
	"required": []any{"client_id"},
}

func docSchema(extra map[string]any, required ...any) map[string]any {
	props := map[string]any{
		"client_id": map[string]any{"type": "string"},
		"doc_type":  map[string]any{"type": "string"},
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   append([]any{"client_id", "doc_type"}, required...),
	}
}

// DefaultRegistry wires the standard tool set against a backend set. Tool
// authorization mirrors agent responsibilities: the operations agent holds
// the verification and account tools, the advisor holds the document and
// notification tools.
func DefaultRegistry(set *backend.Set) *Registry {
	ops := []string{core.AgentOperations}
	advisor := []string{core.AgentAdvisor}
	shared := []string{core.AgentOperations, core.AgentAdvisor, core.AgentOrchestrator}

	return NewRegistry(
		Definition{
			Name:        "get_client_info",
			Description: "Get comprehensive client information including documents",
			Parameters:  clientIDSchema,
			Agents:      shared,
			Handler: func(tc *Context, params map[string]any) Result {
				id := stringParam(params, "client_id")
				client, ok := set.CRM.GetClient(id)
				if !ok {
					return Failf(KindNotFound, "client %s not found", id)
				}
				docs := set.Documents.List(id)
				details := map[string]any{}
				for _, dt := range docs {
					if doc, ok := set.Documents.Get(id, dt); ok {
						details[dt] = map[string]any(doc)
					}
				}
				return Ok(map[string]any{
					"client":              clientPayload(id, client),
					"documents":           details,
					"available_documents": docs,
				})
			},
		},
		Definition{
			Name:        "update_client_info",
			Description: "Update a single client field in the CRM",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"client_id": map[string]any{"type": "string"},
					"field":     map[string]any{"type": "string"},
				},
				"required": []any{"client_id", "field", "value"},
			},
			Agents: advisor,
			Handler: func(tc *Context, params map[string]any) Result {
				id := stringParam(params, "client_id")
				field := stringParam(params, "field")
				if _, ok := set.CRM.GetClient(id); !ok {
					return Failf(KindNotFound, "client %s not found", id)
				}
				if !set.CRM.UpdateClient(id, field, params["value"]) {
					return Failf(KindInvalidArgument, "cannot update field %q for client %s", field, id)
				}
				return Ok(map[string]any{"updated": true, "field": field})
			},
		},
		Definition{
			Name:        "check_eligibility",
			Description: "Check client eligibility for a financial product",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"client_id":    map[string]any{"type": "string"},
					"product_type": map[string]any{"type": "string"},
				},
				"required": []any{"client_id", "product_type"},
			},
			Agents: ops,
			Handler: func(tc *Context, params map[string]any) Result {
				return checkEligibility(set, params)
			},
		},
		Definition{
			Name:        "get_document",
			Description: "Retrieve a specific document for a client",
			Parameters:  docSchema(nil),
			Agents:      ops,
			Handler: func(tc *Context, params map[string]any) Result {
				id := stringParam(params, "client_id")
				dt := stringParam(params, "doc_type")
				doc, ok := set.Documents.Get(id, dt)
				if !ok {
					return Failf(KindNotFound, "document %s not found for client %s", dt, id)
				}
				return Ok(map[string]any{
					"document":  map[string]any(doc),
					"doc_type":  backend.NormalizeDocType(dt),
					"client_id": id,
				})
			},
		},
		Definition{
			Name:        "validate_document",
			Description: "Validate a document for completeness and accuracy",
			Parameters:  docSchema(nil),
			Agents:      ops,
			Handler: func(tc *Context, params map[string]any) Result {
				return validateDocument(set, params)
			},
		},
		Definition{
			Name:        "create_document",
			Description: "Create a new document for a client",
			Parameters: docSchema(map[string]any{
				"data": map[string]any{"type": "object"},
			}, "data"),
			Agents: advisor,
			Handler: func(tc *Context, params map[string]any) Result {
				id := stringParam(params, "client_id")
				dt := stringParam(params, "doc_type")
				data, ok := params["data"].(map[string]any)
				if !ok {
					return Failf(KindInvalidArgument, "data must be an object")
				}
				set.Documents.Put(id, dt, backend.Document(data))
				doc, _ := set.Documents.Get(id, dt)
				return Ok(map[string]any{
					"document":  map[string]any(doc),
					"doc_type":  backend.NormalizeDocType(dt),
					"client_id": id,
				})
			},
		},
		Definition{
			Name:        "update_document",
			Description: "Update an existing document for a client",
			Parameters: docSchema(map[string]any{
				"data": map[string]any{"type": "object"},
			}, "data"),
			Agents: advisor,
			Handler: func(tc *Context, params map[string]any) Result {
				id := stringParam(params, "client_id")
				dt := stringParam(params, "doc_type")
				data, ok := params["data"].(map[string]any)
				if !ok {
					return Failf(KindInvalidArgument, "data must be an object")
				}
				if !set.Documents.Update(id, dt, backend.Document(data)) {
					return Failf(KindNotFound, "document %s not found for client %s", dt, id)
				}
				doc, _ := set.Documents.Get(id, dt)
				return Ok(map[string]any{
					"document":  map[string]any(doc),
					"doc_type":  backend.NormalizeDocType(dt),
					"client_id": id,
				})
			},
		},
		Definition{
			Name:        "open_account",
			Description: "Open a new financial account for a client",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"client_id":    map[string]any{"type": "string"},
					"account_type": map[string]any{"type": "string"},
				},
				"required": []any{"client_id", "account_type"},
			},
			Agents: ops,
			Handler: func(tc *Context, params map[string]any) Result {
				id := stringParam(params, "client_id")
				at := stringParam(params, "account_type")
				if _, ok := set.CRM.GetClient(id); !ok {
					return Failf(KindNotFound, "client %s not found", id)
				}
				acct, err := set.Accounts.Open(id, at)
				if err != nil {
					return Failf(KindConflict, "%s", err.Error())
				}
				return Ok(accountPayload(acct))
			},
		},
		Definition{
			Name:        "get_account",
			Description: "Retrieve account information by account number",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"account_number": map[string]any{"type": "string"},
				},
				"required": []any{"account_number"},
			},
			Agents: ops,
			Handler: func(tc *Context, params map[string]any) Result {
				number := stringParam(params, "account_number")
				acct, ok := set.Accounts.Get(number)
				if !ok {
					return Failf(KindNotFound, "account %s not found", number)
				}
				return Ok(map[string]any{"account": accountPayload(acct)})
			},
		},
		Definition{
			Name:        "send_notification",
			Description: "Send a notification to a client",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"client_id": map[string]any{"type": "string"},
					"type":      map[string]any{"type": "string"},
					"content":   map[string]any{"type": "string"},
				},
				"required": []any{"client_id", "type", "content"},
			},
			Agents: advisor,
			Handler: func(tc *Context, params map[string]any) Result {
				id := stringParam(params, "client_id")
				if _, ok := set.CRM.GetClient(id); !ok {
					return Failf(KindNotFound, "client %s not found", id)
				}
				entry := set.Notifier.Send(id, stringParam(params, "type"), stringParam(params, "content"))
				tc.publish(bus.Event{
					Type:  bus.EventNotification,
					Agent: tc.Agent,
					Payload: map[string]any{
						"client_id": entry.ClientID,
						"type":      entry.Type,
						"content":   entry.Content,
					},
				})
				return Ok(map[string]any{"sent": true, "type": entry.Type, "content": entry.Content})
			},
		},
	)
}

func checkEligibility(set *backend.Set, params map[string]any) Result {
	id := stringParam(params, "client_id")
	product := stringParam(params, "product_type")
	if _, ok := set.CRM.GetClient(id); !ok {
		return Failf(KindNotFound, "client %s not found", id)
	}
	if !strings.Contains(strings.ToLower(product), "roth") {
		return Ok(map[string]any{
			"eligible": true,
			"reason":   "no eligibility constraints defined for " + product,
		})
	}
	doc, ok := set.Documents.Get(id, backend.DocTaxReturn)
	if !ok {
		return Ok(map[string]any{
			"eligible": false,
			"reason":   "no tax return found for income verification",
		})
	}
	income, _ := asInt(doc["income"])
	if income >= rothIRAIncomeLimit {
		return Ok(map[string]any{
			"eligible": false,
			"reason":   "income exceeds Roth IRA limit",
			"income":   income,
			"limit":    rothIRAIncomeLimit,
		})
	}
	return Ok(map[string]any{
		"eligible": true,
		"reason":   "income is within the Roth IRA limit",
		"income":   income,
		"limit":    rothIRAIncomeLimit,
	})
}

func validateDocument(set *backend.Set, params map[string]any) Result {
	id := stringParam(params, "client_id")
	dt := stringParam(params, "doc_type")
	if _, ok := set.CRM.GetClient(id); !ok {
		return Failf(KindNotFound, "client %s not found", id)
	}
	doc, ok := set.Documents.Get(id, dt)
	if !ok {
		return Ok(map[string]any{
			"valid":  false,
			"errors": []any{"document " + backend.NormalizeDocType(dt) + " not found"},
		})
	}

	var errs, warnings []any
	switch backend.NormalizeDocType(dt) {
	case backend.DocIRAApplication:
		if signed, _ := doc["signature_page3"].(bool); !signed {
			errs = append(errs, "missing signature on page 3")
		}
		if submitted, _ := doc["submitted"].(bool); !submitted {
			warnings = append(warnings, "application not yet submitted")
		}
		if status, _ := doc["status"].(string); status != "submitted" {
			warnings = append(warnings, "application status is '"+status+"', expected 'submitted'")
		}
	case backend.DocTaxReturn:
		if income, _ := asInt(doc["income"]); income == 0 {
			errs = append(errs, "income information missing")
		}
		if year, _ := asInt(doc["year"]); year != 2023 {
			errs = append(errs, "tax return year must be 2023")
		}
	}
	return Ok(map[string]any{
		"valid":    len(errs) == 0,
		"errors":   errs,
		"warnings": warnings,
		"document": map[string]any(doc),
	})
}

// asInt accepts the numeric shapes fixtures and JSON decoding produce.
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
