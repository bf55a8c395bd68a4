// Package orders is the order lifecycle manager: it builds, signs and
// dispatches authenticated order requests and maps the raw responses.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"optionflow/config"
	"optionflow/internal/form"
	"optionflow/internal/signer"
	"optionflow/logger"
	"optionflow/models"
)

// Dispatcher is the slice of the exchange gateway the manager consumes.
// The body is the exact canonicalized query string the signature was
// computed over.
type Dispatcher interface {
	SubmitOrder(ctx context.Context, encodedBody, signature string) ([]byte, error)
	CancelOrder(ctx context.Context, encodedBody, signature string) ([]byte, error)
}

// Manager builds the signed form bodies for order placement and
// cancellation. The timestamp clock is injected so signing is
// reproducible under test.
type Manager struct {
	dispatcher Dispatcher
	cfg        *config.Config
	log        *logger.Log
	now        func() time.Time
	newID      func() string
}

func NewManager(dispatcher Dispatcher, cfg *config.Config) *Manager {
	return &Manager{
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        logger.GetLogger(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Place submits one order. The form body is canonicalized in field
// insertion order, signed, and dispatched; the exchange response is
// mapped with absent fields left nil.
func (m *Manager) Place(ctx context.Context, req models.OrderRequest) (*models.OrderResponse, error) {
	if req.Type == models.OrderTypeLimit && req.Price == nil {
		return nil, fmt.Errorf("placeOrder: price is required for LIMIT orders")
	}

	clientID := m.newID()
	body := form.New().
		Add("symbol", req.Symbol).
		Add("side", string(req.Side)).
		Add("type", string(req.Type)).
		Add("quantity", req.Quantity.String()).
		Add("timeInForce", models.TimeInForceGTC).
		Add("newClientOrderId", clientID).
		Add("timestamp", m.timestamp())
	if req.Price != nil {
		body.Add("price", req.Price.String())
	}

	raw, err := m.dispatch(ctx, "placeOrder", body, m.dispatcher.SubmitOrder)
	if err != nil {
		return nil, err
	}

	resp, err := mapResponse(raw)
	if err != nil {
		return nil, &models.UpstreamError{Operation: "placeOrder", Err: err}
	}
	logger.IncrementOrderPlaced()
	m.log.WithComponent("order_manager").WithFields(logger.Fields{
		"symbol":          resp.Symbol,
		"side":            req.Side,
		"order_id":        resp.OrderID,
		"client_order_id": clientID,
		"status":          resp.Status,
	}).Info("order placed")
	return resp, nil
}

// Cancel cancels one order by symbol and exchange order id.
func (m *Manager) Cancel(ctx context.Context, symbol, orderID string) (*models.OrderResponse, error) {
	body := form.New().
		Add("symbol", symbol).
		Add("orderId", orderID).
		Add("timestamp", m.timestamp())

	raw, err := m.dispatch(ctx, "cancelOrder", body, m.dispatcher.CancelOrder)
	if err != nil {
		return nil, err
	}

	resp, err := mapResponse(raw)
	if err != nil {
		return nil, &models.UpstreamError{Operation: "cancelOrder", Err: err}
	}
	logger.IncrementOrderCancelled()
	m.log.WithComponent("order_manager").WithFields(logger.Fields{
		"symbol":   resp.Symbol,
		"order_id": resp.OrderID,
		"status":   resp.Status,
	}).Info("order cancelled")
	return resp, nil
}

func (m *Manager) timestamp() string {
	return fmt.Sprintf("%d", m.now().UnixMilli())
}

func (m *Manager) dispatch(ctx context.Context, op string, body *form.Body, call func(context.Context, string, string) ([]byte, error)) ([]byte, error) {
	encoded := body.Encode()
	signature, err := signer.Sign(encoded, m.cfg.Exchange.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return call(ctx, encoded, signature)
}

// wireOrder mirrors the exchange's order payload. orderId arrives as a
// JSON number; fill and price fields may be absent.
type wireOrder struct {
	OrderID     json.Number `json:"orderId"`
	Symbol      string      `json:"symbol"`
	Status      string      `json:"status"`
	ExecutedQty string      `json:"executedQty"`
	OrigQty     string      `json:"origQty"`
	Price       string      `json:"price"`
	AvgPrice    string      `json:"avgPrice"`
	Side        string      `json:"side"`
}

func mapResponse(raw []byte) (*models.OrderResponse, error) {
	var wire wireOrder
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("malformed order response: %w", err)
	}

	return &models.OrderResponse{
		OrderID:          wire.OrderID.String(),
		Symbol:           wire.Symbol,
		Status:           models.OrderStatus(wire.Status),
		FilledQuantity:   parseOptional(wire.ExecutedQty),
		OriginalQuantity: parseOptional(wire.OrigQty),
		Price:            parseOptional(wire.Price),
		AvgPrice:         parseOptional(wire.AvgPrice),
		Side:             models.OrderSide(wire.Side),
	}, nil
}

// parseOptional keeps absent or unparseable fields nil. "0" here is a
// real value: an unfilled order reports executedQty "0".
func parseOptional(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}
