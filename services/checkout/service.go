package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"oplugy/models"
	"oplugy/services/fees"
	"oplugy/services/vtu"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FunnelService drives the per-service checkout funnels.
type FunnelService interface {
	Start(ctx context.Context, req StartRequest) (*View, error)
	Get(ctx context.Context, tab, id string) (*View, error)
	Select(ctx context.Context, tab, id string, field models.Field, value string) (*View, error)
	Verify(ctx context.Context, tab, id string) (*View, error)
	Submit(ctx context.Context, tab, id string) (*View, *models.OrderDraft, error)
	Close(ctx context.Context, tab, id string) error
}

// HandoffWriter is the part of the handoff slot a funnel may touch.
type HandoffWriter interface {
	Write(ctx context.Context, tab string, draft models.OrderDraft) error
	Clear(ctx context.Context, tab string) error
}

type StartRequest struct {
	Tab     string
	Service models.Service
	Mode    models.FunnelMode
	Server  string
}

// View is the client-facing snapshot of a funnel.
type View struct {
	SessionID    string                     `json:"sessionId"`
	Service      models.Service             `json:"service"`
	Label        string                     `json:"label"`
	Mode         models.FunnelMode          `json:"mode"`
	State        models.FunnelState         `json:"state"`
	Fields       map[models.Field]string    `json:"fields"`
	Catalogs     models.Catalogs            `json:"catalogs"`
	Loading      map[models.CatalogKey]bool `json:"loading"`
	Verification *models.Verification       `json:"verification,omitempty"`
	Quote        fees.Quote                 `json:"quote"`
	CanSubmit    bool                       `json:"canSubmit"`
	Notices      []models.Notice            `json:"notices,omitempty"`
}

// DefaultFunnelService implements FunnelService.
type DefaultFunnelService struct {
	Store         SessionStore
	Handoff       HandoffWriter
	Catalog       vtu.CatalogClient
	Verifier      vtu.VerificationClient
	DefaultServer string
	Logger        *zap.Logger
}

type catalogResult struct {
	Networks   []models.Network
	Providers  []models.Provider
	Categories []string
	Plans      []models.Plan
	Err        error
}

type noticeList struct {
	mu    sync.Mutex
	items []models.Notice
}

func (n *noticeList) add(notice models.Notice) {
	n.mu.Lock()
	n.items = append(n.items, notice)
	n.mu.Unlock()
}

func (n *noticeList) list() []models.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notice(nil), n.items...)
}

func (s *DefaultFunnelService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func newView(d Descriptor, sess *models.FunnelSession, notices []models.Notice) *View {
	return &View{
		SessionID:    sess.SessionID,
		Service:      sess.Service,
		Label:        d.Label,
		Mode:         sess.Mode,
		State:        sess.State,
		Fields:       sess.Fields,
		Catalogs:     sess.Catalogs,
		Loading:      sess.Loading,
		Verification: sess.Verification,
		Quote:        fees.ComputeRaw(strategyFor(sess.Mode), sess.Fields[models.FieldAmount]),
		CanSubmit:    sess.State == models.StateReadyToSubmit,
		Notices:      notices,
	}
}

func notFound() error {
	return models.NewAppError(models.CodeSessionNotFound, "This checkout has expired. Please start again.", ErrSessionNotFound)
}

func descriptorOf(sess *models.FunnelSession) (Descriptor, error) {
	d, ok := DescriptorFor(sess.Service)
	if !ok {
		return Descriptor{}, fmt.Errorf("funnel session %s has unknown service %q", sess.SessionID, sess.Service)
	}
	return d, nil
}

// update runs mutate on a session owned by tab.
func (s *DefaultFunnelService) update(ctx context.Context, tab, id string, mutate func(Descriptor, *models.FunnelSession) error) (*models.FunnelSession, error) {
	sess, err := s.Store.Update(ctx, id, func(sess *models.FunnelSession) error {
		if sess.TabID != tab {
			return ErrSessionNotFound
		}
		d, err := descriptorOf(sess)
		if err != nil {
			return err
		}
		return mutate(d, sess)
	})
	if errors.Is(err, ErrSessionNotFound) {
		return nil, notFound()
	}
	return sess, err
}

func (s *DefaultFunnelService) load(ctx context.Context, tab, id string) (Descriptor, *models.FunnelSession, error) {
	sess, err := s.Store.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) || (err == nil && sess.TabID != tab) {
		return Descriptor{}, nil, notFound()
	}
	if err != nil {
		return Descriptor{}, nil, err
	}
	d, err := descriptorOf(sess)
	if err != nil {
		return Descriptor{}, nil, err
	}
	return d, sess, nil
}

// current returns the view after a refused operation, alongside the refusal.
func (s *DefaultFunnelService) current(ctx context.Context, tab, id string, cause error, notices *noticeList) (*View, error) {
	view, err := s.snapshot(ctx, tab, id, notices)
	if err != nil {
		return nil, cause
	}
	return view, cause
}

func (s *DefaultFunnelService) Start(ctx context.Context, req StartRequest) (*View, error) {
	d, ok := DescriptorFor(req.Service)
	if !ok {
		return nil, invalidField(fmt.Sprintf("Unknown service %q.", req.Service))
	}
	mode := req.Mode
	if mode == "" {
		mode = models.ModeGuest
	}
	if mode != models.ModeGuest && mode != models.ModeWizard {
		return nil, invalidField(fmt.Sprintf("Unknown funnel mode %q.", mode))
	}
	server := req.Server
	if server == "" {
		server = s.DefaultServer
	}

	sess := newSession(d, uuid.New().String(), req.Tab, mode, server)
	root, _ := scheduleLoad(d, sess, d.Root)
	recompute(d, sess)
	if err := s.Store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to start %s funnel: %w", d.Service, err)
	}

	// A fresh funnel never inherits a draft left by an earlier one.
	if err := s.Handoff.Clear(ctx, req.Tab); err != nil {
		s.logger().Warn("checkout: failed to clear stale handoff", zap.String("tab", req.Tab), zap.Error(err))
	}

	s.logger().Info("checkout: funnel started",
		zap.String("sessionId", sess.SessionID),
		zap.String("service", string(d.Service)),
		zap.String("mode", string(mode)),
	)

	notices := &noticeList{}
	s.runLoads(ctx, d, req.Tab, sess.SessionID, []pendingLoad{root}, notices)
	return s.snapshot(ctx, req.Tab, sess.SessionID, notices)
}

func (s *DefaultFunnelService) Get(ctx context.Context, tab, id string) (*View, error) {
	return s.snapshot(ctx, tab, id, &noticeList{})
}

func (s *DefaultFunnelService) snapshot(ctx context.Context, tab, id string, notices *noticeList) (*View, error) {
	d, sess, err := s.load(ctx, tab, id)
	if err != nil {
		return nil, err
	}
	return newView(d, sess, notices.list()), nil
}

func (s *DefaultFunnelService) Select(ctx context.Context, tab, id string, field models.Field, value string) (*View, error) {
	var loads []pendingLoad
	var desc Descriptor
	_, err := s.update(ctx, tab, id, func(d Descriptor, sess *models.FunnelSession) error {
		loads, desc = nil, d
		l, err := applyField(d, sess, field, value)
		if err != nil {
			return err
		}
		loads = l
		// Editing a submitted funnel reopens it.
		recompute(d, sess)
		return nil
	})
	notices := &noticeList{}
	if err != nil {
		if models.HasCode(err, models.CodeSessionNotFound) {
			return nil, err
		}
		return s.current(ctx, tab, id, err, notices)
	}

	s.runLoads(ctx, desc, tab, id, loads, notices)
	return s.snapshot(ctx, tab, id, notices)
}

// runLoads issues the captured fetches in parallel and applies each result
// only if its generation is still current when it returns.
func (s *DefaultFunnelService) runLoads(ctx context.Context, d Descriptor, tab, id string, loads []pendingLoad, notices *noticeList) {
	if len(loads) == 0 {
		return
	}
	// Loads must settle even if the client goes away mid-request.
	bg := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for _, load := range loads {
		wg.Add(1)
		go func(load pendingLoad) {
			defer wg.Done()
			res := s.fetch(bg, d, load)
			s.applyLoad(bg, tab, id, load, res, notices)
		}(load)
	}
	wg.Wait()
}

func (s *DefaultFunnelService) fetch(ctx context.Context, d Descriptor, load pendingLoad) catalogResult {
	var res catalogResult
	switch load.Key {
	case models.CatalogNetworks:
		res.Networks, res.Err = s.Catalog.ListNetworks(ctx, load.Server)
	case models.CatalogProviders:
		if d.Service == models.ServiceElectricity {
			res.Providers, res.Err = s.Catalog.ListElectricityOperators(ctx)
		} else {
			res.Providers, res.Err = s.Catalog.ListCableProviders(ctx)
		}
	case models.CatalogCategories:
		res.Categories, res.Err = s.Catalog.ListDataCategories(ctx, load.Network, load.Server)
	case models.CatalogPlans:
		if d.Service == models.ServiceCable {
			res.Plans, res.Err = s.Catalog.ListCablePlans(ctx, load.Provider)
		} else {
			res.Plans, res.Err = s.Catalog.ListDataPlans(ctx, vtu.DataPlanQuery{
				Network:  load.Network,
				Category: load.Category,
				Server:   load.Server,
			})
		}
	}
	return res
}

func (s *DefaultFunnelService) applyLoad(ctx context.Context, tab, id string, load pendingLoad, res catalogResult, notices *noticeList) {
	stale := false
	_, err := s.update(ctx, tab, id, func(d Descriptor, sess *models.FunnelSession) error {
		stale = false
		if sess.Generations[load.Key] != load.Generation {
			stale = true
			return errSkip
		}
		sess.Loading[load.Key] = false
		if res.Err != nil {
			setCatalog(sess, load.Key, catalogResult{})
		} else {
			setCatalog(sess, load.Key, res)
		}
		refresh(d, sess)
		return nil
	})

	log := s.logger().With(zap.String("sessionId", id), zap.String("catalog", string(load.Key)))
	switch {
	case models.HasCode(err, models.CodeSessionNotFound):
		log.Debug("checkout: funnel closed before catalog response")
		return
	case err != nil:
		log.Error("checkout: failed to apply catalog response", zap.Error(err))
		return
	case stale:
		log.Debug("checkout: discarded superseded catalog response", zap.Uint64("generation", load.Generation))
		return
	}

	if res.Err != nil {
		log.Warn("checkout: catalog unavailable", zap.Error(res.Err))
		if appErr, ok := models.AsAppError(res.Err); ok {
			notices.add(appErr.Notice())
		} else {
			notices.add(models.WarningNotice(string(models.CodeCatalogUnavailable), "Could not load options. Please try again shortly."))
		}
	}
}

func (s *DefaultFunnelService) Verify(ctx context.Context, tab, id string) (*View, error) {
	var (
		desc                            Descriptor
		gen                             uint64
		provider, identifier, meterType string
	)
	_, err := s.update(ctx, tab, id, func(d Descriptor, sess *models.FunnelSession) error {
		desc = d
		if !d.Verification() {
			return invalidField(fmt.Sprintf("%s does not need verification.", d.Label))
		}
		provider, identifier, meterType = verificationInputs(d, sess)
		if provider == "" {
			return incomplete("Please select a provider before verifying.")
		}
		if identifier == "" {
			return incomplete("Please enter the number to verify.")
		}
		invalidateVerification(sess)
		sess.Verifying = true
		gen = sess.VerifyGeneration
		recompute(d, sess)
		return nil
	})
	notices := &noticeList{}
	if err != nil {
		if models.HasCode(err, models.CodeSessionNotFound) {
			return nil, err
		}
		return s.current(ctx, tab, id, err, notices)
	}

	bg := context.WithoutCancel(ctx)
	var result *models.Verification
	var verr error
	if desc.Service == models.ServiceCable {
		result, verr = s.Verifier.VerifyCableSmartcard(bg, vtu.CableVerifyRequest{Provider: provider, Identifier: identifier})
	} else {
		result, verr = s.Verifier.VerifyElectricityMeter(bg, vtu.MeterVerifyRequest{Provider: provider, Identifier: identifier, MeterType: meterType})
	}
	if verr == nil && result == nil {
		verr = models.NewAppError(models.CodeVerificationFailed, "We could not verify this number.", nil)
	}
	if verr == nil {
		// Bind the result to the inputs it was requested for.
		result.Provider, result.Identifier, result.MeterType = provider, identifier, meterType
	}

	stale := false
	sess, err := s.update(bg, tab, id, func(d Descriptor, sess *models.FunnelSession) error {
		stale = false
		if sess.VerifyGeneration != gen {
			stale = true
			return errSkip
		}
		sess.Verifying = false
		if verr != nil {
			sess.Verification = nil
		} else {
			sess.Verification = result
		}
		recompute(d, sess)
		return nil
	})
	if err != nil {
		if !models.HasCode(err, models.CodeSessionNotFound) {
			s.logger().Error("checkout: failed to apply verification", zap.String("sessionId", id), zap.Error(err))
		}
		return nil, err
	}

	log := s.logger().With(zap.String("sessionId", id), zap.String("service", string(desc.Service)))
	if stale {
		log.Debug("checkout: discarded superseded verification", zap.Uint64("generation", gen))
		return newView(desc, sess, notices.list()), nil
	}
	if verr != nil {
		log.Info("checkout: verification failed", zap.Error(verr))
		appErr, ok := models.AsAppError(verr)
		if !ok {
			appErr = models.NewAppError(models.CodeVerificationFailed, "We could not verify this number.", verr)
		}
		return newView(desc, sess, notices.list()), appErr
	}
	log.Info("checkout: recipient verified")
	notices.add(models.SuccessNotice("verified", "Verified: "+result.CustomerName))
	return newView(desc, sess, notices.list()), nil
}

func (s *DefaultFunnelService) Submit(ctx context.Context, tab, id string) (*View, *models.OrderDraft, error) {
	var (
		desc  Descriptor
		draft models.OrderDraft
	)
	_, err := s.update(ctx, tab, id, func(d Descriptor, sess *models.FunnelSession) error {
		desc = d
		built, err := buildDraft(d, sess)
		if err != nil {
			return err
		}
		draft = built
		sess.State = models.StateSubmitted
		return nil
	})
	notices := &noticeList{}
	if err != nil {
		if models.HasCode(err, models.CodeSessionNotFound) {
			return nil, nil, err
		}
		view, err := s.current(ctx, tab, id, err, notices)
		return view, nil, err
	}

	if err := s.Handoff.Write(ctx, tab, draft); err != nil {
		s.logger().Error("checkout: failed to write handoff", zap.String("sessionId", id), zap.Error(err))
		if _, rerr := s.update(ctx, tab, id, func(d Descriptor, sess *models.FunnelSession) error {
			recompute(d, sess)
			return nil
		}); rerr != nil {
			s.logger().Warn("checkout: failed to reopen funnel", zap.String("sessionId", id), zap.Error(rerr))
		}
		return nil, nil, fmt.Errorf("failed to hand off %s order: %w", desc.Service, err)
	}

	s.logger().Info("checkout: order draft handed off",
		zap.String("sessionId", id),
		zap.String("service", string(draft.Service)),
		zap.Float64("amount", draft.Amount),
	)
	view, err := s.Get(ctx, tab, id)
	if err != nil {
		return nil, nil, err
	}
	return view, &draft, nil
}

func (s *DefaultFunnelService) Close(ctx context.Context, tab, id string) error {
	if _, _, err := s.load(ctx, tab, id); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to close funnel: %w", err)
	}
	s.logger().Info("checkout: funnel closed", zap.String("sessionId", id))
	return nil
}
