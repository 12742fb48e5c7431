package storage

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kirillm/trade-state/internal/domain"
	"github.com/kirillm/trade-state/pkg/utils"
)

// Имена логических коллекций
const (
	collectionTrades    = "trades"
	collectionPortfolio = "portfolio"
	portfolioKey        = "current"
)

// DefaultQueryLimit — лимит выборки по умолчанию
const DefaultQueryLimit = 100

const (
	defaultOperationTimeout      = 5 * time.Second
	defaultFailureAlertThreshold = 5
)

// BackendMode указывает, какое хранилище выбрано при инициализации
type BackendMode string

const (
	ModeRemote BackendMode = "remote"
	ModeLocal  BackendMode = "local"
	ModeNone   BackendMode = "none"
)

// AlertSink получает уведомления о деградации хранилища.
// Реализация в internal/telegram шлет их в чат; nil допустим.
type AlertSink interface {
	// StorageFallback вызывается когда сконфигурированное удаленное
	// хранилище не поднялось и менеджер перешел на локальное
	StorageFallback(reason string)

	// StorageFailing вызывается когда записи падают несколько раз подряд
	StorageFailing(operation string, failures int)
}

// Options задает параметры создания менеджера состояния
type Options struct {
	// CredentialsPath — путь к файлу учетных данных удаленного хранилища.
	// Пустой путь означает работу без удаленного хранилища.
	CredentialsPath string
	// FallbackPath — базовый путь локальных файлов состояния
	FallbackPath string
	// FailureAlertThreshold — число подряд неудачных записей до уведомления
	FailureAlertThreshold int

	Database DatabaseOptions

	Logger utils.Log
	Alerts AlertSink
}

// Manager — фасад управления состоянием: единственная точка записи и чтения
// сделок и снапшота портфеля. Хранилище выбирается один раз при создании;
// после деградации на локальное хранилище обратного переключения нет.
//
// Центральный инвариант: ошибка хранилища никогда не покидает менеджер.
// Каждая операция возвращает bool-результат или пустой список, причина
// пишется в лог с именем операции и коллекцией.
//
// Повторов менеджер не делает — одна попытка на вызов, политика ретраев
// остается на вызывающей стороне. Рассчитан на одного логического писателя
// (цикл торговых решений); конкурентный доступ сериализуется снаружи.
type Manager struct {
	backend     domain.Backend
	mode        BackendMode
	initialized bool

	logger utils.Log
	alerts AlertSink

	failThreshold       int
	consecutiveFailures int

	opTimeout time.Duration
	now       func() time.Time // подменяется в тестах
}

// NewManager создает менеджер и выполняет выбор хранилища.
// Ошибку конструктор не возвращает: при полном отказе инициализации менеджер
// остается работоспособным объектом, но каждая операция сразу завершается
// неуспехом, не доходя до ввода-вывода.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewLogger("info")
	}

	m := &Manager{
		mode:          ModeNone,
		logger:        logger,
		alerts:        opts.Alerts,
		failThreshold: opts.FailureAlertThreshold,
		opTimeout:     opts.Database.OperationTimeout,
		now:           time.Now,
	}
	if m.failThreshold <= 0 {
		m.failThreshold = defaultFailureAlertThreshold
	}
	if m.opTimeout <= 0 {
		m.opTimeout = defaultOperationTimeout
	}

	m.selectBackend(opts)
	return m
}

// selectBackend выполняет политику выбора хранилища: удаленное при наличии
// учетных данных, иначе (или при любой ошибке инициализации) локальное
func (m *Manager) selectBackend(opts Options) {
	if opts.CredentialsPath != "" {
		remote, err := m.initRemote(opts)
		if err == nil {
			m.backend = remote
			m.mode = ModeRemote
			m.initialized = true
			m.logger.Info("Remote state storage initialized")
			return
		}
		m.logger.Error("Remote storage initialization failed: %v", err)
		if m.alerts != nil {
			m.alerts.StorageFallback(err.Error())
		}
	}

	m.logger.Warn("Using local storage fallback for state management")
	local, err := NewLocalStore(opts.FallbackPath)
	if err != nil {
		m.logger.Error("Local storage setup failed: %v", err)
		return
	}

	m.backend = local
	m.mode = ModeLocal
	m.initialized = true
}

func (m *Manager) initRemote(opts Options) (*RemoteStore, error) {
	if _, err := os.Stat(opts.CredentialsPath); err != nil {
		return nil, fmt.Errorf("%w: credentials file %s: %v",
			domain.ErrCredentials, opts.CredentialsPath, err)
	}

	creds, err := LoadCredentials(opts.CredentialsPath)
	if err != nil {
		return nil, err
	}

	dbCfg := opts.Database
	dbCfg.OperationTimeout = m.opTimeout
	return NewRemoteStore(creds, dbCfg)
}

// SaveTrade сохраняет запись о сделке в коллекцию trades.
// Возвращает false при любой ошибке; никаких дополнительных полей в запись
// не проставляется.
func (m *Manager) SaveTrade(trade domain.TradeRecord) bool {
	if !m.initialized {
		m.logger.Error("State manager not initialized")
		return false
	}

	if err := trade.Validate(); err != nil {
		m.logger.Error("Invalid trade record: %v", err)
		return false
	}

	ctx, cancel := m.opContext()
	defer cancel()

	if err := m.backend.Append(ctx, collectionTrades, trade.Document()); err != nil {
		m.recordFailure("save_trade", collectionTrades, err)
		return false
	}

	m.recordSuccess()
	m.logger.Info("Trade saved: %s %s at %.8f", trade.Symbol, trade.Action, trade.Price)
	return true
}

// SavePortfolioState сохраняет текущее состояние портфеля, целиком заменяя
// singleton-документ коллекции portfolio. Отметка last_updated проставляется
// в копию снапшота, карта вызывающего не меняется.
func (m *Manager) SavePortfolioState(portfolio domain.PortfolioSnapshot) bool {
	if !m.initialized {
		m.logger.Error("State manager not initialized")
		return false
	}

	doc := portfolio.Document()
	doc["last_updated"] = domain.FormatTimestamp(m.now())

	ctx, cancel := m.opContext()
	defer cancel()

	if err := m.backend.ReplaceSingleton(ctx, collectionPortfolio, portfolioKey, doc); err != nil {
		m.recordFailure("save_portfolio_state", collectionPortfolio, err)
		return false
	}

	m.recordSuccess()
	m.logger.Info("Portfolio state saved: %s", strings.Join(snapshotKeys(portfolio), ", "))
	return true
}

// GetRecentTrades возвращает последние сделки от новых к старым.
// Пустой symbol означает выборку по всем символам; limit <= 0 заменяется
// значением по умолчанию. При ошибке чтения возвращается пустой список, а
// причина пишется в лог: для вызывающего "ничего не прочиталось" и "пусто"
// неразличимы, это осознанный компромисс контракта.
func (m *Manager) GetRecentTrades(symbol string, limit int) []domain.TradeRecord {
	if !m.initialized {
		m.logger.Error("State manager not initialized")
		return nil
	}

	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	opts := domain.QueryOptions{Limit: limit}
	if symbol != "" {
		opts.FilterField = "symbol"
		opts.FilterValue = symbol
	}

	ctx, cancel := m.opContext()
	defer cancel()

	docs, err := m.backend.Query(ctx, collectionTrades, opts)
	if err != nil {
		m.logger.Error("Operation get_recent_trades on %s failed: %v", collectionTrades, err)
		return nil
	}

	trades := make([]domain.TradeRecord, 0, len(docs))
	for _, doc := range docs {
		trade, err := domain.TradeFromDocument(doc)
		if err != nil {
			m.logger.Warn("Skipping malformed trade document: %v", err)
			continue
		}
		trades = append(trades, trade)
	}
	return trades
}

// LoadPortfolioState читает текущий снапшот портфеля.
// Второй результат false, если снапшот еще не сохранялся или чтение не удалось.
func (m *Manager) LoadPortfolioState() (domain.PortfolioSnapshot, bool) {
	if !m.initialized {
		m.logger.Error("State manager not initialized")
		return nil, false
	}

	ctx, cancel := m.opContext()
	defer cancel()

	docs, err := m.backend.Query(ctx, collectionPortfolio, domain.QueryOptions{Limit: 1})
	if err != nil {
		m.logger.Error("Operation load_portfolio_state on %s failed: %v", collectionPortfolio, err)
		return nil, false
	}
	if len(docs) == 0 {
		return nil, false
	}

	return domain.PortfolioSnapshot(docs[0]), true
}

// Mode возвращает выбранное при инициализации хранилище
func (m *Manager) Mode() BackendMode {
	return m.mode
}

// Initialized сообщает, доступно ли менеджеру хоть какое-то хранилище
func (m *Manager) Initialized() bool {
	return m.initialized
}

// Close закрывает активное хранилище
func (m *Manager) Close() error {
	if m.backend == nil {
		return nil
	}
	return m.backend.Close()
}

func (m *Manager) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.opTimeout)
}

func (m *Manager) recordFailure(operation, collection string, err error) {
	m.logger.Error("Operation %s on %s failed: %v", operation, collection, err)
	m.consecutiveFailures++
	if m.alerts != nil && m.consecutiveFailures == m.failThreshold {
		m.alerts.StorageFailing(operation, m.consecutiveFailures)
	}
}

func (m *Manager) recordSuccess() {
	m.consecutiveFailures = 0
}

func snapshotKeys(p domain.PortfolioSnapshot) []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
