package checkout

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"oplugy/models"
	"oplugy/services/fees"
)

var phonePattern = regexp.MustCompile(`^\d{11}$`)

// pendingLoad is a catalog fetch captured at the generation it was issued for.
type pendingLoad struct {
	Key        models.CatalogKey
	Generation uint64
	Network    string
	Category   string
	Server     string
	Provider   string
}

func newSession(d Descriptor, id, tab string, mode models.FunnelMode, server string) *models.FunnelSession {
	now := time.Now()
	sess := &models.FunnelSession{
		SessionID:   id,
		TabID:       tab,
		Service:     d.Service,
		Mode:        mode,
		Server:      server,
		Fields:      map[models.Field]string{},
		Loading:     map[models.CatalogKey]bool{},
		Generations: map[models.CatalogKey]uint64{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, f := range d.Fields {
		if f.Default != "" {
			sess.Fields[f.Name] = f.Default
		}
	}
	return sess
}

func setField(sess *models.FunnelSession, name models.Field, value string) {
	if value == "" {
		delete(sess.Fields, name)
		return
	}
	sess.Fields[name] = value
}

func setCatalog(sess *models.FunnelSession, key models.CatalogKey, res catalogResult) {
	switch key {
	case models.CatalogNetworks:
		sess.Catalogs.Networks = res.Networks
	case models.CatalogProviders:
		sess.Catalogs.Providers = res.Providers
	case models.CatalogCategories:
		sess.Catalogs.Categories = res.Categories
	case models.CatalogPlans:
		sess.Catalogs.Plans = res.Plans
	}
}

// resetCatalog empties key and supersedes any fetch still in flight for it.
func resetCatalog(sess *models.FunnelSession, key models.CatalogKey) {
	sess.Generations[key]++
	sess.Loading[key] = false
	setCatalog(sess, key, catalogResult{})
}

// scheduleLoad resets key and, when its upstream selection is present,
// marks it loading and returns the fetch to issue.
func scheduleLoad(d Descriptor, sess *models.FunnelSession, key models.CatalogKey) (pendingLoad, bool) {
	resetCatalog(sess, key)
	load := pendingLoad{
		Key:        key,
		Generation: sess.Generations[key],
		Server:     sess.Server,
	}
	switch key {
	case models.CatalogCategories:
		load.Network = sess.Fields[models.FieldNetwork]
		if load.Network == "" {
			return pendingLoad{}, false
		}
	case models.CatalogPlans:
		if d.Service == models.ServiceCable {
			id := sess.Fields[models.FieldProvider]
			if id == "" {
				return pendingLoad{}, false
			}
			load.Provider = id
			if p, ok := models.FindProvider(sess.Catalogs.Providers, id); ok && p.Name != "" {
				load.Provider = p.Name
			}
		} else {
			load.Network = sess.Fields[models.FieldNetwork]
			load.Category = sess.Fields[models.FieldCategory]
			if load.Network == "" {
				return pendingLoad{}, false
			}
		}
	}
	sess.Loading[key] = true
	return load, true
}

func invalidateVerification(sess *models.FunnelSession) {
	sess.Verification = nil
	sess.Verifying = false
	sess.VerifyGeneration++
}

func invalidField(msg string) error {
	return models.NewAppError(models.CodeInvalidField, msg, nil)
}

// checkMember rejects catalog-backed values that are not in the loaded list.
func checkMember(sess *models.FunnelSession, field models.Field, value string) error {
	listed := func(key models.CatalogKey, what string, found bool) error {
		if found {
			return nil
		}
		if sess.Loading[key] {
			return invalidField(fmt.Sprintf("The %s list is still loading.", what))
		}
		return invalidField(fmt.Sprintf("Unknown %s %q.", what, value))
	}
	switch field {
	case models.FieldNetwork:
		_, ok := models.FindNetwork(sess.Catalogs.Networks, value)
		return listed(models.CatalogNetworks, "network", ok)
	case models.FieldProvider, models.FieldDisco:
		_, ok := models.FindProvider(sess.Catalogs.Providers, value)
		return listed(models.CatalogProviders, "provider", ok)
	case models.FieldCategory:
		ok := false
		for _, c := range sess.Catalogs.Categories {
			if c == value {
				ok = true
				break
			}
		}
		return listed(models.CatalogCategories, "category", ok)
	case models.FieldPlan:
		_, ok := models.FindPlan(sess.Catalogs.Plans, value)
		return listed(models.CatalogPlans, "plan", ok)
	case models.FieldMeterType:
		if value != "prepaid" && value != "postpaid" {
			return invalidField("Meter type must be prepaid or postpaid.")
		}
	}
	return nil
}

// applyField sets one field, clears everything depending on it and returns
// the catalog fetches the change triggers.
func applyField(d Descriptor, sess *models.FunnelSession, name models.Field, value string) ([]pendingLoad, error) {
	if name == models.FieldAmount && d.PlanPriced {
		return nil, invalidField("The amount is set by the selected plan.")
	}
	input, ok := d.field(name)
	if !ok {
		return nil, invalidField(fmt.Sprintf("%s is not a %s field.", name, d.Label))
	}

	value = strings.TrimSpace(value)
	if value == "" && input.Default != "" {
		value = input.Default
	}
	if value != "" {
		if err := checkMember(sess, name, value); err != nil {
			return nil, err
		}
	}
	if sess.Fields[name] == value {
		if loads := retryEmpty(d, sess, input.Loads); len(loads) > 0 {
			return loads, nil
		}
		return nil, errSkip
	}

	setField(sess, name, value)
	cleared := d.dependents(name)
	touchesVerification := input.VerificationInput
	touchesPlan := name == models.FieldPlan
	for _, f := range cleared {
		delete(sess.Fields, f)
		if fs, _ := d.field(f); fs.VerificationInput {
			touchesVerification = true
		}
		if f == models.FieldPlan {
			touchesPlan = true
		}
	}
	if d.PlanPriced && touchesPlan {
		amount := ""
		if plan, ok := models.FindPlan(sess.Catalogs.Plans, sess.Fields[models.FieldPlan]); ok {
			amount = strconv.FormatFloat(plan.Amount.Float64(), 'f', -1, 64)
		}
		setField(sess, models.FieldAmount, amount)
	}
	if touchesVerification {
		invalidateVerification(sess)
	}

	var loads []pendingLoad
	scheduled := map[models.CatalogKey]bool{}
	for _, key := range input.Loads {
		scheduled[key] = true
		if load, ok := scheduleLoad(d, sess, key); ok {
			loads = append(loads, load)
		}
	}
	for _, f := range cleared {
		fs, _ := d.field(f)
		for _, key := range fs.Loads {
			if !scheduled[key] {
				scheduled[key] = true
				resetCatalog(sess, key)
			}
		}
	}
	return loads, nil
}

// retryEmpty reissues the fetches of catalogs that settled empty, so
// reselecting the same value recovers from an earlier failed load.
func retryEmpty(d Descriptor, sess *models.FunnelSession, keys []models.CatalogKey) []pendingLoad {
	var loads []pendingLoad
	for _, key := range keys {
		if sess.Loading[key] || !catalogEmpty(sess, key) {
			continue
		}
		if load, ok := scheduleLoad(d, sess, key); ok {
			loads = append(loads, load)
		}
	}
	return loads
}

func catalogEmpty(sess *models.FunnelSession, key models.CatalogKey) bool {
	switch key {
	case models.CatalogNetworks:
		return len(sess.Catalogs.Networks) == 0
	case models.CatalogProviders:
		return len(sess.Catalogs.Providers) == 0
	case models.CatalogCategories:
		return len(sess.Catalogs.Categories) == 0
	case models.CatalogPlans:
		return len(sess.Catalogs.Plans) == 0
	}
	return false
}

func anyLoading(sess *models.FunnelSession) (models.CatalogKey, bool) {
	for _, key := range []models.CatalogKey{models.CatalogNetworks, models.CatalogProviders, models.CatalogCategories, models.CatalogPlans} {
		if sess.Loading[key] {
			return key, true
		}
	}
	return "", false
}

func verificationInputs(d Descriptor, sess *models.FunnelSession) (provider, identifier, meterType string) {
	provider = sess.Fields[d.ProviderField]
	identifier = sess.Fields[d.RecipientField]
	if d.Service == models.ServiceElectricity {
		meterType = sess.Fields[models.FieldMeterType]
	}
	return provider, identifier, meterType
}

// verified reports whether the stored verification covers the current inputs.
func verified(d Descriptor, sess *models.FunnelSession) bool {
	if sess.Verifying {
		return false
	}
	return sess.Verification.Matches(verificationInputs(d, sess))
}

func incomplete(msg string) *models.AppError {
	return models.NewAppError(models.CodeValidationIncomplete, msg, nil)
}

// validate checks the per-service submission table and names the first gap.
func validate(d Descriptor, sess *models.FunnelSession) *models.AppError {
	f := sess.Fields
	amountOK := func() bool {
		v, ok := fees.ParseAmount(f[models.FieldAmount])
		return ok && v > 0
	}
	switch d.Service {
	case models.ServiceAirtime:
		switch {
		case f[models.FieldNetwork] == "":
			return incomplete("Please select a network.")
		case !phonePattern.MatchString(f[models.FieldPhone]):
			return incomplete("Please enter a valid 11-digit phone number.")
		case !amountOK():
			return incomplete("Please enter an amount greater than zero.")
		}
	case models.ServiceData:
		switch {
		case f[models.FieldNetwork] == "":
			return incomplete("Please select a network.")
		case f[models.FieldPlan] == "":
			return incomplete("Please select a data plan.")
		case !phonePattern.MatchString(f[models.FieldPhone]):
			return incomplete("Please enter a valid 11-digit phone number.")
		}
	case models.ServiceCable:
		switch {
		case f[models.FieldProvider] == "":
			return incomplete("Please select a cable provider.")
		case f[models.FieldSmartcard] == "":
			return incomplete("Please enter your smartcard/IUC number.")
		case !verified(d, sess):
			return incomplete("Please verify your smartcard number before continuing.")
		case f[models.FieldPlan] == "":
			return incomplete("Please select a subscription plan.")
		}
	case models.ServiceElectricity:
		switch {
		case f[models.FieldDisco] == "":
			return incomplete("Please select your electricity distribution company.")
		case f[models.FieldMeter] == "":
			return incomplete("Please enter your meter number.")
		case !verified(d, sess):
			return incomplete("Please verify your meter number before continuing.")
		case !amountOK():
			return incomplete("Please enter an amount greater than zero.")
		}
	}
	return nil
}

// recompute derives the funnel state from its contents.
func recompute(d Descriptor, sess *models.FunnelSession) {
	switch {
	case sess.Loading[d.Root]:
		sess.State = models.StateSelectingCatalog
	case sess.Verifying:
		sess.State = models.StateVerifying
	case validate(d, sess) == nil:
		if _, loading := anyLoading(sess); loading {
			sess.State = models.StateCollectingDetails
		} else {
			sess.State = models.StateReadyToSubmit
		}
	default:
		sess.State = models.StateCollectingDetails
	}
}

// refresh recomputes the state unless the funnel was already submitted.
func refresh(d Descriptor, sess *models.FunnelSession) {
	if sess.State != models.StateSubmitted {
		recompute(d, sess)
	}
}

// buildDraft turns a valid funnel into an order draft. Plan-priced services
// always take the amount from the catalog plan.
func buildDraft(d Descriptor, sess *models.FunnelSession) (models.OrderDraft, error) {
	if key, loading := anyLoading(sess); loading {
		return models.OrderDraft{}, incomplete(fmt.Sprintf("Please wait for the %s list to finish loading.", key))
	}
	if err := validate(d, sess); err != nil {
		return models.OrderDraft{}, err
	}

	draft := models.OrderDraft{
		Service:   d.Service,
		Recipient: sess.Fields[d.RecipientField],
		Network:   sess.Fields[d.ProviderField],
		Label:     d.Label,
		CreatedAt: time.Now(),
	}
	if d.PlanPriced {
		plan, ok := models.FindPlan(sess.Catalogs.Plans, sess.Fields[models.FieldPlan])
		if !ok {
			return models.OrderDraft{}, incomplete("Please select a plan.")
		}
		if plan.Amount.Float64() <= 0 {
			return models.OrderDraft{}, incomplete("The selected plan has no price. Please choose another plan.")
		}
		draft.PlanID = string(plan.ID)
		draft.PlanName = plan.Name
		draft.Amount = plan.Amount.Float64()
	} else {
		draft.Amount, _ = fees.ParseAmount(sess.Fields[models.FieldAmount])
	}
	if d.Verification() {
		draft.CustomerName = sess.Verification.CustomerName
	}
	if d.Service == models.ServiceElectricity {
		draft.MeterType = sess.Fields[models.FieldMeterType]
	}
	if err := draft.Validate(); err != nil {
		return models.OrderDraft{}, incomplete("Some order details are missing. Please review the form.")
	}
	return draft, nil
}

func strategyFor(mode models.FunnelMode) fees.Strategy {
	if mode == models.ModeWizard {
		return fees.PercentagePlusFlat
	}
	return fees.PercentageOnly
}
