package vtu

import (
	"context"
	"errors"
	"strings"

	"oplugy/models"
)

// VerificationClient resolves a recipient identifier into a customer name.
type VerificationClient interface {
	VerifyCableSmartcard(ctx context.Context, req CableVerifyRequest) (*models.Verification, error)
	VerifyElectricityMeter(ctx context.Context, req MeterVerifyRequest) (*models.Verification, error)
}

type CableVerifyRequest struct {
	Provider   string `json:"provider"`
	Identifier string `json:"smartcard"`
}

type MeterVerifyRequest struct {
	Provider   string `json:"provider"`
	Identifier string `json:"meter"`
	MeterType  string `json:"meterType"`
}

type verifyData struct {
	Verified     *bool  `json:"verified"`
	CustomerName string `json:"customerName"`
	Name         string `json:"name"`
}

func (c *HTTPClient) VerifyCableSmartcard(ctx context.Context, req CableVerifyRequest) (*models.Verification, error) {
	var data verifyData
	if err := c.post(ctx, "/cable/verify", req, &data); err != nil {
		return nil, verificationFailed("We could not verify this smartcard number.", err)
	}
	return resolve(data, req.Provider, req.Identifier, "")
}

func (c *HTTPClient) VerifyElectricityMeter(ctx context.Context, req MeterVerifyRequest) (*models.Verification, error) {
	var data verifyData
	if err := c.post(ctx, "/electricity/verify", req, &data); err != nil {
		return nil, verificationFailed("We could not verify this meter number.", err)
	}
	return resolve(data, req.Provider, req.Identifier, req.MeterType)
}

func resolve(data verifyData, provider, identifier, meterType string) (*models.Verification, error) {
	name := strings.TrimSpace(data.CustomerName)
	if name == "" {
		name = strings.TrimSpace(data.Name)
	}
	if (data.Verified != nil && !*data.Verified) || name == "" {
		return nil, models.NewAppError(models.CodeVerificationFailed, "No customer was found for this number.", nil)
	}
	return &models.Verification{
		Verified:     true,
		CustomerName: name,
		Provider:     provider,
		Identifier:   identifier,
		MeterType:    meterType,
	}, nil
}

// verificationFailed prefers the provider's own message when it sent one.
func verificationFailed(generic string, err error) error {
	msg := generic
	var aggErr *AggregatorError
	if errors.As(err, &aggErr) && aggErr.Soft && aggErr.Message != "" {
		msg = aggErr.Message
	}
	return models.NewAppError(models.CodeVerificationFailed, msg, err)
}
