package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"oplugy/models"
	"oplugy/services/fees"
	"oplugy/services/handoff"
	"oplugy/services/notification"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReferencePrefix starts every payment reference the storefront issues.
const ReferencePrefix = "OPL-"

// RedirectAfterPayment is where the storefront returns once a payment settles.
const RedirectAfterPayment = "/"

// Checkout is what the payment stage renders for a handed-off draft.
type Checkout struct {
	Draft     models.OrderDraft `json:"draft"`
	Quote     fees.Quote        `json:"quote"`
	Gateway   string            `json:"gateway"`
	Presented bool              `json:"presented"`
}

// Completion answers a successful gateway callback.
type Completion struct {
	Status   string        `json:"status"`
	Redirect string        `json:"redirect"`
	Notice   models.Notice `json:"notice"`
}

// PaymentService drives the handed-off draft through the gateway.
type PaymentService interface {
	Begin(ctx context.Context, tab string) (*Checkout, error)
	Initiate(ctx context.Context, tab string) (*models.GatewaySession, *Checkout, error)
	Complete(ctx context.Context, tab, reference string) (*Completion, error)
	Cancel(ctx context.Context, tab, reference string) (*Checkout, models.Notice, error)
}

// Stage implements PaymentService.
type Stage struct {
	Handoff  handoff.Store
	Gateway  Gateway
	Notifier notification.Notifier
	Email    string
	Currency string
	Logger   *zap.Logger
}

func (s *Stage) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func noDraft(err error) error {
	return models.NewAppError(models.CodeNoDraft, "Choose a service to start a new order.", err)
}

// read loads the tab's draft or reports that there is nothing to pay.
func (s *Stage) read(ctx context.Context, tab string) (*handoff.Slot, error) {
	slot, err := s.Handoff.Read(ctx, tab)
	if errors.Is(err, handoff.ErrAbsent) {
		return nil, noDraft(err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read order draft: %w", err)
	}
	return slot, nil
}

// quote recomputes the charge from the principal; totals computed upstream are ignored.
func quote(d models.OrderDraft) fees.Quote {
	return fees.Compute(fees.PercentageOnly, d.Amount)
}

func (s *Stage) checkout(slot *handoff.Slot) *Checkout {
	return &Checkout{
		Draft:     slot.Draft,
		Quote:     quote(slot.Draft),
		Gateway:   s.Gateway.Name(),
		Presented: slot.Presented(),
	}
}

func (s *Stage) Begin(ctx context.Context, tab string) (*Checkout, error) {
	slot, err := s.read(ctx, tab)
	if err != nil {
		return nil, err
	}
	return s.checkout(slot), nil
}

func (s *Stage) Initiate(ctx context.Context, tab string) (*models.GatewaySession, *Checkout, error) {
	slot, err := s.read(ctx, tab)
	if err != nil {
		return nil, nil, err
	}
	co := s.checkout(slot)

	if !s.Gateway.Configured() {
		s.logger().Error("Payment gateway is not configured", zap.String("gateway", s.Gateway.Name()))
		return nil, co, models.NewAppError(models.CodeGatewayConfigMissing,
			"Payments are unavailable right now. Please try again later.", nil)
	}
	if co.Quote.Total <= 0 {
		return nil, co, models.NewAppError(models.CodeValidationIncomplete, "This order has no amount to pay.", nil)
	}

	reference := ReferencePrefix + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	if err := s.Handoff.Present(ctx, tab, reference); err != nil {
		if errors.Is(err, handoff.ErrAlreadyPresented) {
			return nil, co, models.NewAppError(models.CodeAlreadyPresented,
				"A payment for this order is already open. Finish or cancel it first.", err)
		}
		if errors.Is(err, handoff.ErrAbsent) {
			return nil, nil, noDraft(err)
		}
		return nil, co, fmt.Errorf("failed to open payment attempt: %w", err)
	}

	req := models.ChargeRequest{
		Reference: reference,
		Email:     s.Email,
		Amount:    fees.MinorUnits(co.Quote.Total),
		Currency:  s.Currency,
		Metadata: map[string]string{
			"service":   string(co.Draft.Service),
			"recipient": co.Draft.Recipient,
		},
	}
	session, err := s.Gateway.Prepare(ctx, req)
	if err != nil {
		if rerr := s.Handoff.Release(ctx, tab, reference); rerr != nil {
			s.logger().Warn("Failed to release payment attempt", zap.String("reference", reference), zap.Error(rerr))
		}
		s.logger().Error("Gateway rejected payment session", zap.String("reference", reference), zap.Error(err))
		return nil, co, models.NewAppError(models.CodeGatewayFailed, "We could not start the payment. Please try again.", err)
	}

	co.Presented = true
	s.logger().Info("Payment session opened",
		zap.String("reference", reference),
		zap.String("gateway", session.Gateway),
		zap.Int64("amount", session.Amount),
	)
	return session, co, nil
}

func (s *Stage) Complete(ctx context.Context, tab, reference string) (*Completion, error) {
	slot, err := s.read(ctx, tab)
	if err != nil {
		return nil, err
	}
	if !slot.Presented() || slot.Reference != reference {
		return nil, models.NewAppError(models.CodeAttemptMismatch, "This payment does not match the open order.", handoff.ErrAttemptMismatch)
	}

	q := quote(slot.Draft)
	f := models.Fulfillment{
		TabID:     tab,
		Reference: reference,
		Draft:     slot.Draft,
		Fee:       q.Fee,
		Total:     q.Total,
		PaidAt:    time.Now(),
	}
	if err := s.Notifier.Notify(ctx, f); err != nil {
		// The charge already went through; the notice is best effort.
		s.logger().Error("Failed to schedule fulfillment notification", zap.String("reference", reference), zap.Error(err))
	}
	if err := s.Handoff.Clear(ctx, tab); err != nil {
		return nil, fmt.Errorf("failed to clear order draft: %w", err)
	}

	s.logger().Info("Payment completed", zap.String("reference", reference), zap.Float64("total", q.Total))
	return &Completion{
		Status:   "processing",
		Redirect: RedirectAfterPayment,
		Notice:   models.InfoNotice("payment_processing", "Payment received. We are processing your order."),
	}, nil
}

func (s *Stage) Cancel(ctx context.Context, tab, reference string) (*Checkout, models.Notice, error) {
	slot, err := s.read(ctx, tab)
	if err != nil {
		return nil, models.Notice{}, err
	}
	if err := s.Handoff.Release(ctx, tab, reference); err != nil {
		if errors.Is(err, handoff.ErrAttemptMismatch) {
			return nil, models.Notice{}, models.NewAppError(models.CodeAttemptMismatch, "This payment does not match the open order.", err)
		}
		return nil, models.Notice{}, fmt.Errorf("failed to release payment attempt: %w", err)
	}
	slot.Reference, slot.PresentedAt = "", nil

	s.logger().Info("Payment cancelled", zap.String("reference", reference))
	notice := models.NewAppError(models.CodePaymentCancelled, "Payment cancelled. Your order is still here when you are ready.", nil).Notice()
	return s.checkout(slot), notice, nil
}
