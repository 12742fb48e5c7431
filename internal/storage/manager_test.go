package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillm/trade-state/internal/domain"
	"github.com/kirillm/trade-state/pkg/utils"
)

// recordingSink собирает уведомления для проверок
type recordingSink struct {
	fallbacks []string
	failures  []string
}

func (s *recordingSink) StorageFallback(reason string) {
	s.fallbacks = append(s.fallbacks, reason)
}

func (s *recordingSink) StorageFailing(operation string, failures int) {
	s.failures = append(s.failures, operation)
}

// failingBackend всегда возвращает ошибку
type failingBackend struct{}

func (failingBackend) Append(context.Context, string, domain.Document) error {
	return errors.New("backend down")
}

func (failingBackend) ReplaceSingleton(context.Context, string, string, domain.Document) error {
	return errors.New("backend down")
}

func (failingBackend) Query(context.Context, string, domain.QueryOptions) ([]domain.Document, error) {
	return nil, errors.New("backend down")
}

func (failingBackend) Close() error { return nil }

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		FallbackPath: filepath.Join(t.TempDir(), "local_state.json"),
		Logger:       utils.NewLoggerWithOutput("debug", os.Stderr),
	}
}

func testTrade(symbol string, ts time.Time) domain.TradeRecord {
	return domain.TradeRecord{
		Symbol:         symbol,
		Action:         domain.ActionBuy,
		Price:          65000.0,
		Quantity:       0.01,
		Timestamp:      ts,
		Strategy:       "sma_crossover",
		Confidence:     0.8,
		PortfolioValue: 10000.0,
		Metadata:       map[string]interface{}{"source": "test"},
	}
}

func TestManagerSelectsLocalWithoutCredentials(t *testing.T) {
	sink := &recordingSink{}
	opts := testOptions(t)
	opts.Alerts = sink

	m := NewManager(opts)
	t.Cleanup(func() { _ = m.Close() })

	assert.Equal(t, ModeLocal, m.Mode())
	assert.True(t, m.Initialized())
	// Без сконфигурированного удаленного хранилища деградации нет
	assert.Empty(t, sink.fallbacks)
}

func TestManagerFallsBackWhenCredentialsFileMissing(t *testing.T) {
	sink := &recordingSink{}
	opts := testOptions(t)
	opts.CredentialsPath = filepath.Join(t.TempDir(), "no_such_credentials.json")
	opts.Alerts = sink

	m := NewManager(opts)
	t.Cleanup(func() { _ = m.Close() })

	assert.Equal(t, ModeLocal, m.Mode())
	assert.True(t, m.Initialized())
	assert.Len(t, sink.fallbacks, 1)

	// Локальный путь полностью работоспособен после отката
	assert.True(t, m.SaveTrade(testTrade("BTC/USDT", time.Now())))
}

func TestManagerFallsBackOnMalformedCredentials(t *testing.T) {
	credsPath := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(credsPath, []byte("{not json"), 0o644))

	sink := &recordingSink{}
	opts := testOptions(t)
	opts.CredentialsPath = credsPath
	opts.Alerts = sink

	m := NewManager(opts)
	t.Cleanup(func() { _ = m.Close() })

	assert.Equal(t, ModeLocal, m.Mode())
	assert.Len(t, sink.fallbacks, 1)
}

func TestManagerUninitializedShortCircuits(t *testing.T) {
	// Базовый путь внутри обычного файла: MkdirAll гарантированно падает
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	opts := testOptions(t)
	opts.FallbackPath = filepath.Join(blocker, "dir", "state.json")

	m := NewManager(opts)
	t.Cleanup(func() { _ = m.Close() })

	assert.Equal(t, ModeNone, m.Mode())
	assert.False(t, m.Initialized())

	assert.False(t, m.SaveTrade(testTrade("BTC/USDT", time.Now())))
	assert.False(t, m.SavePortfolioState(domain.PortfolioSnapshot{"cash": 1.0}))
	assert.Nil(t, m.GetRecentTrades("", 10))

	_, ok := m.LoadPortfolioState()
	assert.False(t, ok)
}

func TestManagerSaveTradeRoundTrip(t *testing.T) {
	m := NewManager(testOptions(t))
	t.Cleanup(func() { _ = m.Close() })

	trade := testTrade("BTC/USDT", time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC))
	require.True(t, m.SaveTrade(trade))

	trades := m.GetRecentTrades("", 10)
	require.Len(t, trades, 1)

	got := trades[0]
	assert.Equal(t, trade.Symbol, got.Symbol)
	assert.Equal(t, trade.Action, got.Action)
	assert.Equal(t, trade.Price, got.Price)
	assert.Equal(t, trade.Quantity, got.Quantity)
	assert.True(t, got.Timestamp.Equal(trade.Timestamp))
	assert.Equal(t, trade.Strategy, got.Strategy)
	assert.Equal(t, trade.Confidence, got.Confidence)
	assert.Equal(t, trade.PortfolioValue, got.PortfolioValue)
	assert.Equal(t, "test", got.Metadata["source"])
}

func TestManagerRejectsInvalidTrade(t *testing.T) {
	m := NewManager(testOptions(t))
	t.Cleanup(func() { _ = m.Close() })

	trade := testTrade("BTC/USDT", time.Time{}) // без отметки времени
	assert.False(t, m.SaveTrade(trade))
	assert.Empty(t, m.GetRecentTrades("", 10))
}

func TestManagerGetRecentTradesLimitAndOrder(t *testing.T) {
	m := NewManager(testOptions(t))
	t.Cleanup(func() { _ = m.Close() })

	baseTime := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.True(t, m.SaveTrade(testTrade("BTC/USDT", baseTime.Add(time.Duration(i)*time.Minute))))
	}

	trades := m.GetRecentTrades("", 3)
	require.Len(t, trades, 3)
	for i := 1; i < len(trades); i++ {
		assert.True(t, trades[i-1].Timestamp.After(trades[i].Timestamp),
			"trades must be ordered most recent first")
	}
	assert.True(t, trades[0].Timestamp.Equal(baseTime.Add(4*time.Minute)))
}

func TestManagerSymbolFilterInterleaved(t *testing.T) {
	m := NewManager(testOptions(t))
	t.Cleanup(func() { _ = m.Close() })

	baseTime := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	symbols := []string{"ETH/USDT", "BTC/USDT", "ETH/USDT", "BTC/USDT"}
	for i, symbol := range symbols {
		require.True(t, m.SaveTrade(testTrade(symbol, baseTime.Add(time.Duration(i)*time.Second))))
	}

	trades := m.GetRecentTrades("ETH/USDT", 10)
	require.Len(t, trades, 2)
	for _, trade := range trades {
		assert.Equal(t, "ETH/USDT", trade.Symbol)
	}
}

func TestManagerPortfolioLastUpdatedIncreases(t *testing.T) {
	m := NewManager(testOptions(t))
	t.Cleanup(func() { _ = m.Close() })

	snapshot := domain.PortfolioSnapshot{"BTC/USDT": 0.01, "cash": 9350.0}

	first := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	second := first.Add(5 * time.Minute)

	m.now = func() time.Time { return first }
	require.True(t, m.SavePortfolioState(snapshot))

	m.now = func() time.Time { return second }
	require.True(t, m.SavePortfolioState(snapshot))

	restored, ok := m.LoadPortfolioState()
	require.True(t, ok)

	ts, err := domain.DocumentTimestamp(domain.Document(restored))
	require.NoError(t, err)
	assert.True(t, ts.Equal(second), "last_updated must reflect the latest save")
	assert.Equal(t, 9350.0, restored["cash"])

	// Карта вызывающего не меняется при простановке last_updated
	_, stamped := snapshot["last_updated"]
	assert.False(t, stamped)
}

func TestManagerFailureThresholdAlert(t *testing.T) {
	sink := &recordingSink{}
	opts := testOptions(t)
	opts.Alerts = sink
	opts.FailureAlertThreshold = 2

	m := NewManager(opts)
	t.Cleanup(func() { _ = m.Close() })
	m.backend = failingBackend{}

	trade := testTrade("BTC/USDT", time.Now())
	assert.False(t, m.SaveTrade(trade))
	assert.Len(t, sink.failures, 0, "first failure stays below the threshold")

	assert.False(t, m.SaveTrade(trade))
	assert.Len(t, sink.failures, 1, "threshold reached, one alert")

	assert.False(t, m.SaveTrade(trade))
	assert.Len(t, sink.failures, 1, "no repeat alert while failures continue")
}

func TestManagerReadFailureReturnsEmpty(t *testing.T) {
	m := NewManager(testOptions(t))
	t.Cleanup(func() { _ = m.Close() })
	m.backend = failingBackend{}

	assert.Empty(t, m.GetRecentTrades("BTC/USDT", 10))

	_, ok := m.LoadPortfolioState()
	assert.False(t, ok)
}
