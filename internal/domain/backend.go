package domain

import "context"

// QueryOptions задает параметры выборки документов
type QueryOptions struct {
	// FilterField и FilterValue задают не более одного фильтра точного
	// равенства. Сравниваются только строковые значения документа
	// (единственный реальный случай — фильтр по symbol).
	FilterField string
	FilterValue string
	// Limit ограничивает число документов в результате
	Limit int
}

// Backend определяет интерфейс хранилища документов.
// Удаленное хранилище (PostgreSQL) — основное; локальные JSON-файлы — запасной
// вариант. Выбор выполняется один раз при создании менеджера состояния.
//
// Реализации возвращают ошибки; в bool-результаты и пустые списки их
// преобразует менеджер, за его границу ошибки хранилища не выходят.
type Backend interface {
	// Append добавляет один документ в именованную коллекцию
	Append(ctx context.Context, collection string, doc Document) error

	// ReplaceSingleton целиком заменяет единственный документ коллекции,
	// идентифицируемый ключом
	ReplaceSingleton(ctx context.Context, collection, key string, doc Document) error

	// Query возвращает документы коллекции от новых к старым по отметке
	// времени, не более opts.Limit штук
	Query(ctx context.Context, collection string, opts QueryOptions) ([]Document, error)

	// Close освобождает ресурсы хранилища
	Close() error
}
