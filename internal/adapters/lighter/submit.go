package lighter

import (
	"context"
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/coachpo/ladder/errs"
	"github.com/coachpo/ladder/internal/schema"
)

type sendTxResponse struct {
	apiStatus
	TxHash string `json:"tx_hash"`
}

// SubmitOrder signs and sends a create-order transaction. Any response other
// than success is a submission rejection.
func (c *Client) SubmitOrder(ctx context.Context, req schema.SubmitRequest) (schema.SubmitReceipt, error) {
	if c.signer == nil {
		return schema.SubmitReceipt{}, errs.AuthFailure(c.opts.Venue, "no signer configured", nil)
	}
	orderType, err := encodeOrderType(req.Type)
	if err != nil {
		return schema.SubmitReceipt{}, errs.SubmissionRejected(c.opts.Venue, err.Error(), nil)
	}
	tif, err := encodeTimeInForce(req.TimeInForce)
	if err != nil {
		return schema.SubmitReceipt{}, errs.SubmissionRejected(c.opts.Venue, err.Error(), nil)
	}
	tx, err := c.signer.SignCreateOrder(ctx, CreateOrderTx{
		MarketIndex:      req.MarketID,
		ClientOrderIndex: req.ClientOrderID,
		BaseAmount:       req.BaseAmount,
		Price:            int64(req.Price),
		IsAsk:            req.IsAsk,
		OrderType:        orderType,
		TimeInForce:      tif,
		ReduceOnly:       req.ReduceOnly,
		TriggerPrice:     int64(req.TriggerPrice),
	})
	if err != nil {
		return schema.SubmitReceipt{}, errs.SubmissionRejected(c.opts.Venue, "sign create order", err)
	}
	hash, err := c.sendTx(ctx, "create order", tx, errs.CanonicalSubmissionRejected)
	if err != nil {
		return schema.SubmitReceipt{}, err
	}
	return schema.SubmitReceipt{TxHash: hash, TxInfo: tx.TxInfo}, nil
}

// CancelOrder signs and sends a cancel transaction. The venue resolves the
// order by the index the order was submitted with.
func (c *Client) CancelOrder(ctx context.Context, req schema.CancelRequest) error {
	if c.signer == nil {
		return errs.AuthFailure(c.opts.Venue, "no signer configured", nil)
	}
	tx, err := c.signer.SignCancelOrder(ctx, CancelOrderTx{
		MarketIndex: req.MarketID,
		OrderIndex:  req.ClientOrderID,
	})
	if err != nil {
		return errs.New(c.opts.Venue, errs.CodeExchange,
			errs.WithMessage("sign cancel order"),
			errs.WithCause(err))
	}
	_, err = c.sendTx(ctx, "cancel order", tx, errs.CanonicalUnknown)
	return err
}

func (c *Client) sendTx(ctx context.Context, op string, tx SignedTx, fallback errs.CanonicalCode) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"tx_type": strconv.Itoa(tx.TxType),
			"tx_info": tx.TxInfo,
		}).
		Post(pathSendTx)
	if err != nil {
		return "", errs.Network(c.opts.Venue, op, err)
	}
	if resp.IsError() {
		return "", c.statusError(op, resp, fallback)
	}
	var body sendTxResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", errs.New(c.opts.Venue, errs.CodeExchange,
			errs.WithMessage(op+": decode response"),
			errs.WithCause(err),
			errs.WithCanonicalCode(fallback))
	}
	if !body.ok() {
		return "", errs.New(c.opts.Venue, errs.CodeExchange,
			errs.WithMessage(op),
			errs.WithRawCode(strconv.Itoa(body.Code)),
			errs.WithRawMessage(body.Message),
			errs.WithCanonicalCode(fallback))
	}
	hash := body.TxHash
	if hash == "" {
		hash = tx.TxHash
	}
	c.logger.Debug("tx sent", zap.String("op", op), zap.String("tx_hash", hash))
	return hash, nil
}

func encodeOrderType(t schema.OrderType) (int, error) {
	switch t {
	case schema.OrderTypeLimit, "":
		return orderTypeLimit, nil
	case schema.OrderTypeMarket:
		return orderTypeMarket, nil
	default:
		return 0, fmt.Errorf("unsupported order type %q", t)
	}
}

func encodeTimeInForce(tif schema.TimeInForce) (int, error) {
	switch tif {
	case schema.TIFImmediateOrCancel:
		return timeInForceIOC, nil
	case schema.TIFGoodTillTime, "":
		return timeInForceGTT, nil
	case schema.TIFPostOnly:
		return timeInForcePostOnly, nil
	default:
		return 0, fmt.Errorf("unsupported time in force %q", tif)
	}
}
