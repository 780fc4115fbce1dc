package checkout

import "oplugy/models"

// FieldSpec describes one input of a funnel.
type FieldSpec struct {
	Name models.Field
	// DependsOn lists the fields whose change clears this one.
	DependsOn []models.Field
	// Loads lists the catalogs refetched when this field changes.
	Loads []models.CatalogKey
	// VerificationInput marks fields a verification result was computed from.
	VerificationInput bool
	Default           string
}

// Descriptor parameterises the funnel engine for one service.
type Descriptor struct {
	Service models.Service
	Label   string
	// Root is the catalog loaded when the funnel starts.
	Root           models.CatalogKey
	ProviderField  models.Field
	RecipientField models.Field
	// PlanPriced services take their amount from the selected plan.
	PlanPriced bool
	Fields     []FieldSpec
}

var descriptors = map[models.Service]Descriptor{
	models.ServiceAirtime: {
		Service:        models.ServiceAirtime,
		Label:          "Airtime Top-up",
		Root:           models.CatalogNetworks,
		ProviderField:  models.FieldNetwork,
		RecipientField: models.FieldPhone,
		Fields: []FieldSpec{
			{Name: models.FieldNetwork},
			{Name: models.FieldPhone},
			{Name: models.FieldAmount},
		},
	},
	models.ServiceData: {
		Service:        models.ServiceData,
		Label:          "Data Bundle",
		Root:           models.CatalogNetworks,
		ProviderField:  models.FieldNetwork,
		RecipientField: models.FieldPhone,
		PlanPriced:     true,
		Fields: []FieldSpec{
			{Name: models.FieldNetwork, Loads: []models.CatalogKey{models.CatalogCategories, models.CatalogPlans}},
			{Name: models.FieldCategory, DependsOn: []models.Field{models.FieldNetwork}, Loads: []models.CatalogKey{models.CatalogPlans}},
			{Name: models.FieldPlan, DependsOn: []models.Field{models.FieldNetwork, models.FieldCategory}},
			{Name: models.FieldPhone},
		},
	},
	models.ServiceCable: {
		Service:        models.ServiceCable,
		Label:          "Cable TV Subscription",
		Root:           models.CatalogProviders,
		ProviderField:  models.FieldProvider,
		RecipientField: models.FieldSmartcard,
		PlanPriced:     true,
		Fields: []FieldSpec{
			{Name: models.FieldProvider, Loads: []models.CatalogKey{models.CatalogPlans}, VerificationInput: true},
			{Name: models.FieldSmartcard, VerificationInput: true},
			{Name: models.FieldPlan, DependsOn: []models.Field{models.FieldProvider}},
		},
	},
	models.ServiceElectricity: {
		Service:        models.ServiceElectricity,
		Label:          "Electricity Token",
		Root:           models.CatalogProviders,
		ProviderField:  models.FieldDisco,
		RecipientField: models.FieldMeter,
		Fields: []FieldSpec{
			{Name: models.FieldDisco, VerificationInput: true},
			{Name: models.FieldMeter, VerificationInput: true},
			{Name: models.FieldMeterType, VerificationInput: true, Default: "prepaid"},
			{Name: models.FieldAmount},
		},
	},
}

// DescriptorFor returns the funnel descriptor of service.
func DescriptorFor(service models.Service) (Descriptor, bool) {
	if !service.Valid() {
		return Descriptor{}, false
	}
	d, ok := descriptors[service]
	return d, ok
}

// Verification reports whether the recipient must be verified before submit.
func (d Descriptor) Verification() bool {
	return d.Service.RequiresVerification()
}

func (d Descriptor) field(name models.Field) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// dependents returns every field transitively depending on name, in declaration order.
func (d Descriptor) dependents(name models.Field) []models.Field {
	seen := map[models.Field]bool{name: true}
	var out []models.Field
	for changed := true; changed; {
		changed = false
		for _, f := range d.Fields {
			if seen[f.Name] {
				continue
			}
			for _, dep := range f.DependsOn {
				if seen[dep] {
					seen[f.Name] = true
					out = append(out, f.Name)
					changed = true
					break
				}
			}
		}
	}
	return out
}
