package binanceclient

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"cryptoDecisionEngine/internal/domain"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

// formatDecimal truncates v to places decimals and renders it without exponent.
// Truncation keeps quantities within the account's available size.
func formatDecimal(v float64, places int32) string {
	return decimal.NewFromFloat(v).Truncate(places).String()
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s '%s': %w", field, s, err)
	}
	return v, nil
}

func translateKline(bk *futures.Kline, symbol, interval string) (domain.Candle, error) {
	if bk == nil {
		return domain.Candle{}, errors.New("received nil kline")
	}
	open, err := parseFloat("open price", bk.Open)
	if err != nil {
		return domain.Candle{}, err
	}
	high, err := parseFloat("high price", bk.High)
	if err != nil {
		return domain.Candle{}, err
	}
	low, err := parseFloat("low price", bk.Low)
	if err != nil {
		return domain.Candle{}, err
	}
	cls, err := parseFloat("close price", bk.Close)
	if err != nil {
		return domain.Candle{}, err
	}
	vol, err := parseFloat("volume", bk.Volume)
	if err != nil {
		return domain.Candle{}, err
	}
	return domain.Candle{
		OpenTime:  time.UnixMilli(bk.OpenTime).UTC(),
		CloseTime: time.UnixMilli(bk.CloseTime).UTC(),
		Symbol:    symbol,
		Interval:  interval,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}

func translateKlines(klines []*futures.Kline, symbol, interval string) ([]domain.Candle, error) {
	out := make([]domain.Candle, 0, len(klines))
	for _, bk := range klines {
		c, err := translateKline(bk, symbol, interval)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func translateLevel(price, qty string) (domain.PriceLevel, error) {
	p, err := parseFloat("depth price", price)
	if err != nil {
		return domain.PriceLevel{}, err
	}
	q, err := parseFloat("depth quantity", qty)
	if err != nil {
		return domain.PriceLevel{}, err
	}
	return domain.PriceLevel{Price: p, Quantity: q}, nil
}

// translateOrder builds an execution report. A market order acknowledged before
// it fills reports a zero average price; the reference price stands in for it.
func translateOrder(order *futures.CreateOrderResponse, trade domain.TradeDetails) *domain.ExecutionReport {
	avg, _ := strconv.ParseFloat(order.AvgPrice, 64)
	if avg <= 0 {
		avg = trade.Price
	}
	qty, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	if qty <= 0 {
		qty = trade.Quantity
	}
	ts := time.Now().UTC()
	if order.UpdateTime > 0 {
		ts = time.UnixMilli(order.UpdateTime).UTC()
	}
	return &domain.ExecutionReport{
		OrderID:       strconv.FormatInt(order.OrderID, 10),
		Symbol:        trade.Symbol,
		Side:          trade.Side,
		Quantity:      qty,
		ExecutedPrice: avg,
		Mode:          domain.ModeReal,
		Time:          ts,
	}
}

// translatePositionRisk converts a non-empty position into an exposure.
func translatePositionRisk(pos *futures.PositionRisk) (domain.PositionExposure, bool) {
	if pos == nil {
		return domain.PositionExposure{}, false
	}
	amt, _ := strconv.ParseFloat(pos.PositionAmt, 64)
	if amt == 0 {
		return domain.PositionExposure{}, false
	}
	price, _ := strconv.ParseFloat(pos.MarkPrice, 64)
	if price == 0 {
		price, _ = strconv.ParseFloat(pos.EntryPrice, 64)
	}
	return domain.PositionExposure{Symbol: pos.Symbol, Quantity: amt, Price: price}, true
}
