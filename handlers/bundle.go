package handlers

import "github.com/gin-gonic/gin"

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Checkout funnel endpoints
	StartFunnel  gin.HandlerFunc
	GetFunnel    gin.HandlerFunc
	SelectField  gin.HandlerFunc
	VerifyFunnel gin.HandlerFunc
	SubmitFunnel gin.HandlerFunc
	CloseFunnel  gin.HandlerFunc

	// Payment stage endpoints
	GetCheckout     gin.HandlerFunc
	InitiatePayment gin.HandlerFunc
	PaymentCallback gin.HandlerFunc
	CancelPayment   gin.HandlerFunc

	// Notification feed
	GetNotifications gin.HandlerFunc

	// Demo auth endpoints
	LoginHandler  gin.HandlerFunc
	MeHandler     gin.HandlerFunc
	SignupHandler gin.HandlerFunc
}
