package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	maxKlinesLimit = 1500
)

// Client is the Binance USD-M futures adapter. It serves market data for every bot
// and account snapshots plus order execution for bots in real mode.
type Client struct {
	futuresClient     *futures.Client
	logger            ports.Logger
	quoteAsset        string
	quantityPrecision int32
	pricePrecision    int32
}

var (
	_ ports.MarketDataProvider = (*Client)(nil)
	_ ports.ExecutionClient    = (*Client)(nil)
	_ ports.AccountProvider    = (*Client)(nil)
)

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey            string
	SecretKey         string
	UseTestnet        bool
	Logger            ports.Logger
	QuoteAsset        string // Balance asset, USDT by default
	QuantityPrecision int32  // Decimal places sent for order quantities
	PricePrecision    int32  // Decimal places sent for stop prices
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	ctx := context.Background()
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(ctx, "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(ctx, "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL, "testnet": cfg.UseTestnet})

	quote := cfg.QuoteAsset
	if quote == "" {
		quote = "USDT"
	}
	qtyPrec := cfg.QuantityPrecision
	if qtyPrec <= 0 {
		qtyPrec = 3
	}
	pricePrec := cfg.PricePrecision
	if pricePrec <= 0 {
		pricePrec = 2
	}

	return &Client{
		futuresClient:     client,
		logger:            cfg.Logger,
		quoteAsset:        quote,
		quantityPrecision: qtyPrec,
		pricePrecision:    pricePrec,
	}, nil
}

// mapAPIErrorCode translates Binance API error codes into ports errors.
func mapAPIErrorCode(code int64) error {
	switch code {
	case -1003:
		return ports.ErrRateLimited
	case -1021:
		return ports.ErrTimeout
	case -1022:
		return ports.ErrAuthenticationFailed
	case -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130:
		return ports.ErrInvalidRequest
	case -2010, -2022:
		return ports.ErrOrderPlacementFailed
	case -2011:
		return ports.ErrOrderCancelFailed
	case -2013:
		return ports.ErrOrderNotFound
	case -2014, -2015:
		return ports.ErrInvalidAPIKeys
	case -2019, -3005, -3041, -4047:
		return ports.ErrInsufficientFunds
	case -4003, -4014, -4015:
		return ports.ErrInvalidRequest
	case -4044:
		return ports.ErrNotFound
	default:
		return ports.ErrUnknown
	}
}

// classifyError maps a transport or API error to its ports error.
func classifyError(err error) error {
	var apiErr *common.APIError
	switch {
	case errors.As(err, &apiErr):
		return mapAPIErrorCode(apiErr.Code)
	case errors.Is(err, context.DeadlineExceeded):
		return ports.ErrTimeout
	case errors.Is(err, context.Canceled):
		return ports.ErrContextCanceled
	case strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"):
		return ports.ErrConnectionFailed
	default:
		return ports.ErrUnknown
	}
}

// handleError logs err and wraps it with its ports classification.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	fields := map[string]interface{}{"operation": operation}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message
	}
	c.logger.Error(ctx, err, operation+" failed", fields)
	return fmt.Errorf("%s failed: %w: %w", operation, classifyError(err), err)
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// SetServerTime synchronizes the client's time offset with the server.
func (c *Client) SetServerTime(ctx context.Context) error {
	op := "SetServerTime"
	if _, err := c.futuresClient.NewSetServerTimeService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// FetchCandles returns up to limit most recent candles, oldest first.
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	op := "FetchCandles"
	if limit <= 0 || limit > maxKlinesLimit {
		limit = maxKlinesLimit
	}
	klines, err := c.futuresClient.NewKlinesService().Symbol(symbol).Interval(timeframe).Limit(limit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	candles, err := translateKlines(klines, symbol, timeframe)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	return candles, nil
}

// FetchCandleRange pages through every candle between start and end.
func (c *Client) FetchCandleRange(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]domain.Candle, error) {
	op := "FetchCandleRange"
	var all []domain.Candle
	from := start

	for {
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(timeframe).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxKlinesLimit).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		candles, err := translateKlines(klines, symbol, timeframe)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		all = append(all, candles...)

		from = time.UnixMilli(klines[len(klines)-1].CloseTime + 1)
		if from.After(end) || len(klines) < maxKlinesLimit {
			break
		}
	}
	return all, nil
}

// FetchOrderBook returns the top depth levels on each side.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
	op := "FetchOrderBook"
	res, err := c.futuresClient.NewDepthService().Symbol(symbol).Limit(depthLimit(depth)).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	book := &domain.OrderBook{Symbol: symbol, Time: time.UnixMilli(res.Time)}
	for _, b := range res.Bids {
		lvl, err := translateLevel(b.Price, b.Quantity)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		book.Bids = append(book.Bids, lvl)
	}
	for _, a := range res.Asks {
		lvl, err := translateLevel(a.Price, a.Quantity)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		book.Asks = append(book.Asks, lvl)
	}
	return book, nil
}

// depthLimit rounds a requested depth up to one the futures API accepts.
func depthLimit(depth int) int {
	for _, allowed := range []int{5, 10, 20, 50, 100, 500, 1000} {
		if depth <= allowed {
			return allowed
		}
	}
	return 1000
}

// GetAccountSnapshot returns the futures wallet balance and open positions.
// The exchange account is shared, so userID is only used for logging.
func (c *Client) GetAccountSnapshot(ctx context.Context, userID string) (*domain.AccountSnapshot, error) {
	op := "GetAccountSnapshot"
	account, err := c.futuresClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	snapshot := &domain.AccountSnapshot{Positions: []domain.PositionExposure{}}
	for _, asset := range account.Assets {
		if asset.Asset != c.quoteAsset {
			continue
		}
		balance, err := strconv.ParseFloat(asset.WalletBalance, 64)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("could not parse balance '%s': %w", asset.WalletBalance, err), op)
		}
		snapshot.Balance = balance
	}

	risks, err := c.futuresClient.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	for _, r := range risks {
		if exp, ok := translatePositionRisk(r); ok {
			snapshot.Positions = append(snapshot.Positions, exp)
		}
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"userID": userID, "balance": snapshot.Balance, "positions": len(snapshot.Positions)})
	return snapshot, nil
}

// SubmitOrder places a market order for the trade.
func (c *Client) SubmitOrder(ctx context.Context, trade domain.TradeDetails) (*domain.ExecutionReport, error) {
	op := "SubmitOrder"
	qty := formatDecimal(trade.Quantity, c.quantityPrecision)
	if qty == "0" {
		return nil, fmt.Errorf("%s failed: %w: quantity %v rounds to zero", op, ports.ErrInvalidRequest, trade.Quantity)
	}

	order, err := c.futuresClient.NewCreateOrderService().
		Symbol(trade.Symbol).
		Side(futures.SideType(trade.Side)).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	report := translateOrder(order, trade)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":   trade.Symbol,
		"side":     trade.Side,
		"quantity": qty,
		"orderID":  report.OrderID,
		"avgPrice": report.ExecutedPrice,
	})
	return report, nil
}

// PlaceProtectiveOrders attaches a stop-market and a take-profit-market order
// that both close the position opened by fill.
func (c *Client) PlaceProtectiveOrders(ctx context.Context, trade domain.TradeDetails, fill *domain.ExecutionReport) (*domain.ProtectiveOrders, error) {
	op := "PlaceProtectiveOrders"
	if fill == nil {
		return nil, fmt.Errorf("%s failed: %w: missing fill", op, ports.ErrInvalidRequest)
	}
	closeSide := futures.SideType(trade.Side.Opposite())
	qty := formatDecimal(fill.Quantity, c.quantityPrecision)
	orders := &domain.ProtectiveOrders{StopLossPrice: trade.StopLossPrice, TakeProfitPrice: trade.TakeProfitPrice}

	if trade.StopLossPrice > 0 {
		sl, err := c.futuresClient.NewCreateOrderService().
			Symbol(trade.Symbol).
			Side(closeSide).
			Type(futures.OrderTypeStopMarket).
			Quantity(qty).
			StopPrice(formatDecimal(trade.StopLossPrice, c.pricePrecision)).
			ReduceOnly(true).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op+" stop loss")
		}
		orders.StopLossOrderID = strconv.FormatInt(sl.OrderID, 10)
	}

	if trade.TakeProfitPrice > 0 {
		tp, err := c.futuresClient.NewCreateOrderService().
			Symbol(trade.Symbol).
			Side(closeSide).
			Type(futures.OrderTypeTakeProfitMarket).
			Quantity(qty).
			StopPrice(formatDecimal(trade.TakeProfitPrice, c.pricePrecision)).
			ReduceOnly(true).
			Do(ctx)
		if err != nil {
			// The stop is already resting; report it so the caller keeps protection.
			c.logger.Warn(ctx, op+": take profit rejected, stop loss kept", map[string]interface{}{"symbol": trade.Symbol, "error": err.Error()})
			return orders, c.handleError(ctx, err, op+" take profit")
		}
		orders.TakeProfitOrderID = strconv.FormatInt(tp.OrderID, 10)
	}

	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":     trade.Symbol,
		"stopLoss":   orders.StopLossPrice,
		"takeProfit": orders.TakeProfitPrice,
		"slOrderID":  orders.StopLossOrderID,
		"tpOrderID":  orders.TakeProfitOrderID,
	})
	return orders, nil
}

// CloseExposure flattens quantity opened by trade with a reduce-only market order.
func (c *Client) CloseExposure(ctx context.Context, trade domain.TradeDetails, quantity float64) (*domain.ExecutionReport, error) {
	op := "CloseExposure"
	closing := trade
	closing.Side = trade.Side.Opposite()
	closing.Quantity = quantity

	order, err := c.futuresClient.NewCreateOrderService().
		Symbol(trade.Symbol).
		Side(futures.SideType(closing.Side)).
		Type(futures.OrderTypeMarket).
		Quantity(formatDecimal(quantity, c.quantityPrecision)).
		ReduceOnly(true).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	report := translateOrder(order, closing)
	c.logger.Warn(ctx, op+": exposure closed", map[string]interface{}{"symbol": trade.Symbol, "quantity": quantity, "orderID": report.OrderID})
	return report, nil
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	op := "CancelOrder"
	res, err := c.futuresClient.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "orderID": orderID, "status": res.Status})
	return nil
}
