package vtu

import (
	"context"
	"errors"
	"net/url"

	"oplugy/models"
)

// CatalogClient lists the aggregator's provider rosters and plans.
// Every call is idempotent and side-effect free.
type CatalogClient interface {
	ListNetworks(ctx context.Context, server string) ([]models.Network, error)
	ListDataPlans(ctx context.Context, q DataPlanQuery) ([]models.Plan, error)
	ListDataCategories(ctx context.Context, network, server string) ([]string, error)
	ListCableProviders(ctx context.Context) ([]models.Provider, error)
	ListCablePlans(ctx context.Context, providerName string) ([]models.Plan, error)
	ListElectricityOperators(ctx context.Context) ([]models.Provider, error)
}

// DataPlanQuery scopes a data plan lookup. Category is optional.
type DataPlanQuery struct {
	Network  string
	Category string
	Server   string
}

func (c *HTTPClient) ListNetworks(ctx context.Context, server string) ([]models.Network, error) {
	var out []models.Network
	q := url.Values{}
	setIf(q, "server", server)
	if err := c.get(ctx, "/networks", q, &out); err != nil {
		return nil, unavailable("networks", err)
	}
	return out, nil
}

func (c *HTTPClient) ListDataPlans(ctx context.Context, dq DataPlanQuery) ([]models.Plan, error) {
	var out []models.Plan
	q := url.Values{}
	q.Set("network", dq.Network)
	setIf(q, "category", dq.Category)
	setIf(q, "server", dq.Server)
	if err := c.get(ctx, "/data/plans", q, &out); err != nil {
		return nil, unavailable("data plans", err)
	}
	return out, nil
}

func (c *HTTPClient) ListDataCategories(ctx context.Context, network, server string) ([]string, error) {
	var out []string
	q := url.Values{}
	q.Set("network", network)
	setIf(q, "server", server)
	if err := c.get(ctx, "/data/categories", q, &out); err != nil {
		return nil, unavailable("data categories", err)
	}
	return out, nil
}

func (c *HTTPClient) ListCableProviders(ctx context.Context) ([]models.Provider, error) {
	var out []models.Provider
	if err := c.get(ctx, "/cable/providers", nil, &out); err != nil {
		return nil, unavailable("cable providers", err)
	}
	return out, nil
}

func (c *HTTPClient) ListCablePlans(ctx context.Context, providerName string) ([]models.Plan, error) {
	var out []models.Plan
	q := url.Values{}
	q.Set("provider", providerName)
	if err := c.get(ctx, "/cable/plans", q, &out); err != nil {
		return nil, unavailable("cable plans", err)
	}
	return out, nil
}

func (c *HTTPClient) ListElectricityOperators(ctx context.Context) ([]models.Provider, error) {
	var out []models.Provider
	if err := c.get(ctx, "/electricity/operators", nil, &out); err != nil {
		return nil, unavailable("electricity operators", err)
	}
	return out, nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

// unavailable classifies any aggregator failure on a catalog call.
func unavailable(what string, err error) error {
	msg := "Could not load " + what + ". Please try again shortly."
	var aggErr *AggregatorError
	if errors.As(err, &aggErr) && aggErr.Soft && aggErr.Message != "" {
		msg = aggErr.Message
	}
	return models.NewAppError(models.CodeCatalogUnavailable, msg, err)
}
