// Batch query service client.
package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/castlebay/halcyon/internal/models"
	"github.com/castlebay/halcyon/internal/shared"
	"github.com/castlebay/halcyon/internal/transport"
)

// Operation is one named operation in a batch query.
type Operation = transport.QueryOperation

// accountQueryDoc resolves account records by id through the batch endpoint.
const accountQueryDoc = `query AccountQuery($accountIds: [String]!) {
	Account {
		accounts(accountIds: $accountIds) {
			id
			displayName
			externalAuths {
				type
				accountId
				externalAuthId
				externalDisplayName
			}
		}
	}
}`

// QueryService executes named operations against the batch query endpoint.
type QueryService struct {
	service
}

// NewQueryService creates a batch query client.
func NewQueryService(opts Options) *QueryService {
	return &QueryService{service: newService(opts, "query")}
}

// Query executes the given operations as one batch and returns one payload
// per operation, in request order.
func (q *QueryService) Query(ctx context.Context, ops ...Operation) ([]json.RawMessage, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: operations", shared.ErrMissingArgument)
	}
	payloads, err := q.client.Query(ctx, q.cfg.Platform.QueryURL, 0, ops...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return payloads, nil
}

// QueryOne executes a single operation and returns its payload.
func (q *QueryService) QueryOne(ctx context.Context, op Operation) (json.RawMessage, error) {
	payloads, err := q.Query(ctx, op)
	if err != nil {
		return nil, err
	}
	return payloads[0], nil
}

// Accounts resolves account records through the batch endpoint. The REST
// bulk lookup on [AccountService] is the primary path; this one exists for
// callers already batching other operations.
func (q *QueryService) Accounts(ctx context.Context, ids []string) ([]models.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	payload, err := q.QueryOne(ctx, Operation{
		Name:      "AccountQuery",
		Variables: map[string]any{"accountIds": ids},
		Query:     accountQueryDoc,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Accounts []models.Account `json:"accounts"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decoding account query payload: %w", err)
	}
	return result.Accounts, nil
}
