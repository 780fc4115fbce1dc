package models

import "time"

type FunnelState string

const (
	StateSelectingCatalog  FunnelState = "selecting_catalog"
	StateCollectingDetails FunnelState = "collecting_details"
	StateVerifying         FunnelState = "verifying"
	StateReadyToSubmit     FunnelState = "ready_to_submit"
	StateSubmitted         FunnelState = "submitted"
)

// FunnelMode selects the fee policy quoted by a funnel.
type FunnelMode string

const (
	ModeGuest  FunnelMode = "guest"
	ModeWizard FunnelMode = "wizard"
)

type Field string

const (
	FieldNetwork   Field = "network"
	FieldCategory  Field = "category"
	FieldPlan      Field = "plan"
	FieldPhone     Field = "phone"
	FieldAmount    Field = "amount"
	FieldProvider  Field = "provider"
	FieldSmartcard Field = "smartcard"
	FieldDisco     Field = "disco"
	FieldMeter     Field = "meter"
	FieldMeterType Field = "meterType"
)

type CatalogKey string

const (
	CatalogNetworks   CatalogKey = "networks"
	CatalogProviders  CatalogKey = "providers"
	CatalogCategories CatalogKey = "categories"
	CatalogPlans      CatalogKey = "plans"
)

// Catalogs are the remote lists a funnel has loaded for its current selections.
type Catalogs struct {
	Networks   []Network  `json:"networks"`
	Providers  []Provider `json:"providers"`
	Categories []string   `json:"categories"`
	Plans      []Plan     `json:"plans"`
}

// FunnelSession is the server-side state of one checkout funnel, stored as JSON in Redis.
type FunnelSession struct {
	SessionID string      `json:"sessionId"`
	TabID     string      `json:"tabId"`
	Service   Service     `json:"service"`
	Mode      FunnelMode  `json:"mode"`
	Server    string      `json:"server"`
	State     FunnelState `json:"state"`

	Fields   map[Field]string    `json:"fields"`
	Catalogs Catalogs            `json:"catalogs"`
	Loading  map[CatalogKey]bool `json:"loading"`

	// Generations count catalog requests per key; a response is applied only
	// while its generation is still current.
	Generations      map[CatalogKey]uint64 `json:"generations"`
	Verification     *Verification         `json:"verification,omitempty"`
	Verifying        bool                  `json:"verifying"`
	VerifyGeneration uint64                `json:"verifyGeneration"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
