package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexString decodes a JSON string or number into a string. The aggregator
// returns numeric IDs for some rosters and string IDs for others.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", raw)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// Price is a catalog price. Plans carry it as a number or a numeric string ("500", "1,000").
type Price float64

func (p *Price) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == `""` {
		*p = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", raw, err)
	}
	*p = Price(v)
	return nil
}

func (p Price) Float64() float64 {
	return float64(p)
}

// Network is a mobile network operator from the aggregator roster.
type Network struct {
	ID   FlexString `json:"id"`
	Name string     `json:"name"`
}

// Provider is a cable-TV provider or an electricity distribution company (disco).
type Provider struct {
	ID   FlexString `json:"id"`
	Name string     `json:"name"`
}

// Plan is a priced catalog item scoped to a provider and optional category.
// Its price is authoritative for the order.
type Plan struct {
	ID     FlexString `json:"id"`
	Name   string     `json:"name"`
	Amount Price      `json:"amount"`
}

// FindNetwork returns the network with the given ID.
func FindNetwork(networks []Network, id string) (Network, bool) {
	for _, n := range networks {
		if string(n.ID) == id {
			return n, true
		}
	}
	return Network{}, false
}

// FindProvider returns the provider with the given ID.
func FindProvider(providers []Provider, id string) (Provider, bool) {
	for _, p := range providers {
		if string(p.ID) == id {
			return p, true
		}
	}
	return Provider{}, false
}

// FindPlan returns the plan with the given ID.
func FindPlan(plans []Plan, id string) (Plan, bool) {
	for _, p := range plans {
		if string(p.ID) == id {
			return p, true
		}
	}
	return Plan{}, false
}
