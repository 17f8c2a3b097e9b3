package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"github.com/ngenest/SecretSanta/internal/assign"
	"github.com/ngenest/SecretSanta/internal/models"
	"github.com/ngenest/SecretSanta/internal/payment"
	"github.com/ngenest/SecretSanta/internal/services"
	"github.com/ngenest/SecretSanta/internal/token"
)

// HTTPHandler holds the dependencies for the HTTP handlers.
type HTTPHandler struct {
	exchange *services.ExchangeService
	batches  *services.BatchService
	acks     *services.AckService
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(
	exchange *services.ExchangeService,
	batches *services.BatchService,
	acks *services.AckService,
) *HTTPHandler {
	return &HTTPHandler{exchange: exchange, batches: batches, acks: acks}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	api := router.Group("/api")
	api.POST("/draw", h.CreateDraw)
	api.POST("/payments", h.CreatePayment)
	api.POST("/notifications/send", h.SendNotifications)
	api.POST("/acknowledgements", h.Acknowledge)
}

// Health reports liveness.
func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type participantRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	GroupID string `json:"groupId"`
}

type drawRequest struct {
	Name         string               `json:"name"`
	Date         string               `json:"date"`
	ExchangeType string               `json:"exchangeType"`
	DrawMode     string               `json:"drawMode"`
	RulesText    string               `json:"rulesText"`
	Organizer    models.Organizer     `json:"organizer"`
	Participants []participantRequest `json:"participants"`
}

type assignmentResponse struct {
	Giver struct {
		Name  string `json:"name"`
		Email string `json:"email,omitempty"`
	} `json:"giver"`
	Receiver struct {
		Name string `json:"name"`
	} `json:"receiver"`
}

// CreateDraw runs a draw and parks its notifications in a new batch.
// Receivers are redacted to their name only; the full assignment goes
// out by email or SMS once the batch is paid for.
func (h *HTTPHandler) CreateDraw(c *gin.Context) {
	var req drawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must be valid JSON."})
		return
	}

	var mode models.DrawMode
	switch models.DrawMode(req.DrawMode) {
	case models.DrawModeCouples:
		mode = models.DrawModeCouples
	case models.DrawModeIndividuals, "":
		mode = models.DrawModeIndividuals
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "drawMode must be \"individuals\" or \"couples\"."})
		return
	}
	exchangeType := req.ExchangeType
	if exchangeType == "" {
		exchangeType = "Secret Santa"
	}

	participants := make([]models.Participant, len(req.Participants))
	for i, p := range req.Participants {
		participants[i] = models.Participant{
			ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone, GroupID: p.GroupID,
		}
	}

	result, err := h.exchange.Draw(services.DrawRequest{
		EventName:    req.Name,
		EventDate:    req.Date,
		ExchangeType: exchangeType,
		DrawMode:     mode,
		RulesText:    req.RulesText,
		Organizer:    req.Organizer,
		Participants: participants,
	})
	switch {
	case errors.Is(err, services.ErrInvalidDrawRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, assign.ErrInfeasible):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "No valid pairing exists for these participants. Check the group composition and try again.",
		})
		return
	case err != nil:
		logger.Errorf("draw failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate assignments."})
		return
	}

	assignments := make([]assignmentResponse, len(result.Assignments))
	for i, m := range result.Assignments {
		assignments[i].Giver.Name = m.Giver.Name
		assignments[i].Giver.Email = m.Giver.Email
		assignments[i].Receiver.Name = m.Receiver.Name
	}

	c.JSON(http.StatusOK, gin.H{
		"batchId":     result.BatchID,
		"assignments": assignments,
	})
}

type paymentRequest struct {
	BatchID string `json:"batchId"`
}

// CreatePayment asks the payment provider for a payment artifact
// priced at the notification fee and bound to the given batch.
func (h *HTTPHandler) CreatePayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BatchID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batchId is required."})
		return
	}

	payReq, err := h.batches.CreatePaymentRequest(c.Request.Context(), req.BatchID)
	switch {
	case errors.Is(err, services.ErrBatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown batch."})
		return
	case err != nil:
		logger.Errorf("create payment for batch %s: %v", req.BatchID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not create a payment request."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"paymentId":    payReq.PaymentID,
		"clientHandle": payReq.ClientHandle,
	})
}

type sendRequest struct {
	BatchID   string `json:"batchId"`
	PaymentID string `json:"paymentId"`
}

// SendNotifications dispatches a batch once its payment has settled.
func (h *HTTPHandler) SendNotifications(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BatchID == "" || req.PaymentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batchId and paymentId are required."})
		return
	}

	sentAt, err := h.batches.ConsumeIfPaid(c.Request.Context(), req.BatchID, req.PaymentID)
	switch {
	case errors.Is(err, services.ErrBatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown batch, or its notifications were already sent."})
		return
	case errors.Is(err, payment.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown payment."})
		return
	case errors.Is(err, services.ErrPaymentNotSettled),
		errors.Is(err, services.ErrPaymentMismatch),
		errors.Is(err, services.ErrPaymentAmountInsufficient),
		errors.Is(err, services.ErrPaymentCurrencyMismatch):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
		return
	case errors.Is(err, services.ErrDispatchFailed):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Some notifications could not be delivered. The batch was kept; retry with the same payment.",
		})
		return
	case err != nil:
		logger.Errorf("send batch %s: %v", req.BatchID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send notifications."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sentAt": sentAt.Format(time.RFC3339)})
}

type acknowledgeRequest struct {
	Token string `json:"token"`
}

// Acknowledge redeems an acknowledgment token. Redemption is
// idempotent; the response carries everything the confirmation page
// needs to render.
func (h *HTTPHandler) Acknowledge(c *gin.Context) {
	var req acknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required."})
		return
	}

	record, already, err := h.acks.Redeem(c.Request.Context(), req.Token)
	if errors.Is(err, token.ErrInvalidToken) {
		c.JSON(http.StatusNotFound, gin.H{"error": "This link is not valid."})
		return
	}
	if err != nil {
		logger.Errorf("redeem token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm the assignment."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"acknowledged":        true,
		"alreadyAcknowledged": already,
		"acknowledgedAt":      record.AcknowledgedAt,
		"eventName":           record.Payload.EventName,
		"eventDate":           record.Payload.EventDate,
		"exchangeType":        record.Payload.ExchangeType,
		"giverName":           record.Payload.Giver.Name,
		"receiverName":        record.Payload.Receiver.Name,
		"organizerName":       record.Payload.Organizer.Name,
		"rulesText":           record.Payload.RulesText,
	})
}
