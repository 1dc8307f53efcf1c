package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/appforge/connectorhub/pkg/domain"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// Connector is the Stripe shared connector. A project configures it once
// with a secret key; resources are the account's customers. The search term
// is matched against customer email, the one filter Stripe's list API
// supports directly.
type Connector struct{}

func NewConnector() *Connector {
	return &Connector{}
}

func (c *Connector) Descriptor() domain.ConnectorDescriptor {
	return domain.ConnectorDescriptor{
		Key:         domain.ConnectorKey_Stripe,
		DisplayName: "Stripe",
		Description: "List and search customers of a Stripe account",
	}
}

// apiClient builds a per-credential client so concurrent projects never
// share key state.
func (c *Connector) apiClient(secretKey string) *client.API {
	sc := &client.API{}
	sc.Init(secretKey, nil)

	return sc
}

func (c *Connector) ValidateCredential(ctx context.Context, credential string) error {
	if credential == "" {
		return fmt.Errorf("stripe secret key is required")
	}

	sc := c.apiClient(credential)

	// Balance retrieval is the cheapest authenticated call.
	if _, err := sc.Balance.Get(&stripe.BalanceParams{
		Params: stripe.Params{Context: ctx},
	}); err != nil {
		return fmt.Errorf("stripe API rejected the key: %w", err)
	}

	return nil
}

func (c *Connector) QueryResources(ctx context.Context, credential string, query domain.ResourceQuery) (domain.ResourcePage, error) {
	sc := c.apiClient(credential)

	params := &stripe.CustomerListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(query.GetLimitWithMax(defaultPageSize, maxPageSize)))
	params.Single = true

	if query.Cursor != "" {
		params.StartingAfter = stripe.String(query.Cursor)
	}
	if query.Search != "" {
		params.Email = stripe.String(query.Search)
	}

	iter := sc.Customers.List(params)

	resources := []domain.Resource{}
	for iter.Next() {
		customer := iter.Customer()

		title := customer.Name
		if title == "" {
			title = customer.Email
		}

		resources = append(resources, domain.Resource{
			ID:    customer.ID,
			Title: title,
			Type:  "customer",
			URL:   "https://dashboard.stripe.com/customers/" + customer.ID,
			Metadata: map[string]any{
				"email": customer.Email,
			},
		})
	}

	if err := iter.Err(); err != nil {
		return domain.ResourcePage{}, c.queryError(err)
	}

	page := domain.ResourcePage{Resources: resources}
	if iter.CustomerList().ListMeta.HasMore && len(resources) > 0 {
		page.HasMore = true
		page.NextCursor = resources[len(resources)-1].ID
	}

	return page, nil
}

func (c *Connector) queryError(err error) error {
	statusCode := 0

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		statusCode = stripeErr.HTTPStatusCode
	}

	return &domain.ResourceQueryError{
		ConnectorKey: domain.ConnectorKey_Stripe,
		StatusCode:   statusCode,
		Err:          err,
	}
}
