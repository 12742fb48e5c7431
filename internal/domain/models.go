package domain

import (
	"fmt"
	"time"
)

// Действия по сделке
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// TimestampLayout — формат отметок времени в документах.
// RFC3339Nano в UTC сортируется корректно и восстанавливается без потерь.
const TimestampLayout = time.RFC3339Nano

// TradeRecord представляет запись о принятом торговом решении.
// Запись неизменяема после создания: хранилище её только сериализует,
// исправления оформляются новыми записями.
type TradeRecord struct {
	Symbol         string
	Action         string // "BUY", "SELL" or "HOLD"
	Price          float64
	Quantity       float64
	Timestamp      time.Time // проставляется источником решения, не хранилищем
	Strategy       string
	Confidence     float64 // [0.0, 1.0]
	PortfolioValue float64
	Metadata       map[string]interface{}
}

// Validate проверяет корректность записи перед сохранением
func (t *TradeRecord) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidInput)
	}
	switch t.Action {
	case ActionBuy, ActionSell, ActionHold:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidInput, t.Action)
	}
	if t.Price < 0 {
		return fmt.Errorf("%w: negative price", ErrInvalidInput)
	}
	if t.Quantity < 0 {
		return fmt.Errorf("%w: negative quantity", ErrInvalidInput)
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.4f out of [0, 1]", ErrInvalidInput, t.Confidence)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp not set", ErrInvalidInput)
	}
	return nil
}

// Document возвращает сериализуемое представление записи.
// Набор ключей фиксирован; metadata никогда не сохраняется как null.
func (t *TradeRecord) Document() Document {
	meta := t.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	return Document{
		"symbol":          t.Symbol,
		"action":          t.Action,
		"price":           t.Price,
		"quantity":        t.Quantity,
		"timestamp":       FormatTimestamp(t.Timestamp),
		"strategy":        t.Strategy,
		"confidence":      t.Confidence,
		"portfolio_value": t.PortfolioValue,
		"metadata":        meta,
	}
}

// TradeFromDocument восстанавливает запись о сделке из документа
func TradeFromDocument(doc Document) (TradeRecord, error) {
	ts, err := DocumentTimestamp(doc)
	if err != nil {
		return TradeRecord{}, err
	}

	trade := TradeRecord{
		Symbol:         docString(doc, "symbol"),
		Action:         docString(doc, "action"),
		Price:          docFloat(doc, "price"),
		Quantity:       docFloat(doc, "quantity"),
		Timestamp:      ts,
		Strategy:       docString(doc, "strategy"),
		Confidence:     docFloat(doc, "confidence"),
		PortfolioValue: docFloat(doc, "portfolio_value"),
	}

	if meta, ok := doc["metadata"].(map[string]interface{}); ok {
		trade.Metadata = meta
	} else {
		trade.Metadata = map[string]interface{}{}
	}

	return trade, nil
}

// PortfolioSnapshot представляет текущее состояние портфеля: открытый набор
// полей позиция/значение. Снапшот заменяется целиком при каждом сохранении;
// отметку last_updated проставляет менеджер состояния.
type PortfolioSnapshot map[string]interface{}

// Document возвращает копию снапшота как документ.
// Копия позволяет менеджеру проставить last_updated, не трогая карту вызывающего.
func (p PortfolioSnapshot) Document() Document {
	doc := make(Document, len(p)+1)
	for key, value := range p {
		doc[key] = value
	}
	return doc
}

// Document представляет сериализованную запись, которой оперируют хранилища
type Document map[string]interface{}

// FormatTimestamp сериализует время в формат документов
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// DocumentTimestamp извлекает отметку времени документа: поле timestamp
// у сделок, last_updated у снапшота портфеля
func DocumentTimestamp(doc Document) (time.Time, error) {
	for _, field := range []string{"timestamp", "last_updated"} {
		raw, ok := doc[field]
		if !ok {
			continue
		}
		str, ok := raw.(string)
		if !ok {
			return time.Time{}, fmt.Errorf("%w: field %s is not a string", ErrInvalidInput, field)
		}
		ts, err := time.Parse(TimestampLayout, str)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse %s: %w", field, err)
		}
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("%w: document has no timestamp", ErrInvalidInput)
}

func docString(doc Document, key string) string {
	str, _ := doc[key].(string)
	return str
}

func docFloat(doc Document, key string) float64 {
	// После JSON-десериализации все числа приходят как float64
	val, _ := doc[key].(float64)
	return val
}
