package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillm/trade-state/internal/domain"
	_ "github.com/lib/pq"
)

// RemoteStore реализует domain.Backend поверх PostgreSQL.
// Все логические коллекции живут в одной таблице documents: имя коллекции,
// необязательный ключ singleton-документа, отметка времени записи для
// сортировки и сам документ в JSONB.
type RemoteStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewRemoteStore подключается к базе, проверяет соединение и выполняет
// миграции. Любая ошибка на этом этапе означает откат менеджера на локальное
// хранилище, поэтому конструктор ничего не логирует сам.
func NewRemoteStore(creds *Credentials, dbCfg DatabaseOptions) (*RemoteStore, error) {
	db, err := sql.Open("postgres", creds.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbCfg.OperationTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabaseConnection, err)
	}

	// Настройка connection pool из конфигурации
	db.SetMaxOpenConns(dbCfg.MaxOpenConns)
	db.SetMaxIdleConns(dbCfg.MaxIdleConns)
	db.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)

	store := &RemoteStore{
		db:      db,
		timeout: dbCfg.OperationTimeout,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// DatabaseOptions задает параметры пула и таймаут обращений
type DatabaseOptions struct {
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	OperationTimeout time.Duration
}

func (s *RemoteStore) migrate() error {
	migrations := []string{
		// Единая таблица документов для всех коллекций
		`CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			collection VARCHAR(50) NOT NULL,
			doc_key VARCHAR(100),
			record_ts TIMESTAMPTZ NOT NULL,
			data JSONB NOT NULL
		)`,
		// Singleton-документы: не более одного на пару (collection, doc_key)
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_singleton
			ON documents(collection, doc_key) WHERE doc_key IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection_ts
			ON documents(collection, record_ts)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Append добавляет документ в коллекцию; идентификатор генерирует сервер
func (s *RemoteStore) Append(ctx context.Context, collection string, doc domain.Document) error {
	ts, err := domain.DocumentTimestamp(doc)
	if err != nil {
		// Отметку времени проставляет источник записи, хранилище
		// не подставляет "сейчас" молча
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, record_ts, data) VALUES ($1, $2, $3)`,
		collection, ts, data,
	)
	return err
}

// ReplaceSingleton целиком заменяет единственный документ коллекции по ключу
func (s *RemoteStore) ReplaceSingleton(ctx context.Context, collection, key string, doc domain.Document) error {
	ts, err := domain.DocumentTimestamp(doc)
	if err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, doc_key, record_ts, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, doc_key) WHERE doc_key IS NOT NULL
		DO UPDATE SET record_ts = EXCLUDED.record_ts, data = EXCLUDED.data`,
		collection, key, ts, data,
	)
	return err
}

// Query возвращает документы коллекции от новых к старым
func (s *RemoteStore) Query(ctx context.Context, collection string, opts domain.QueryOptions) ([]domain.Document, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		rows *sql.Rows
		err  error
	)
	if opts.FilterField != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT data FROM documents
			WHERE collection = $1 AND data->>$2::text = $3
			ORDER BY record_ts DESC
			LIMIT $4`,
			collection, opts.FilterField, opts.FilterValue, limit,
		)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT data FROM documents
			WHERE collection = $1
			ORDER BY record_ts DESC
			LIMIT $2`,
			collection, limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var doc domain.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal document: %w", err)
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// Close закрывает соединение с базой данных
func (s *RemoteStore) Close() error {
	return s.db.Close()
}
