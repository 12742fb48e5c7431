package domain

import "errors"

var (
	// ErrNotFound возвращается когда запись не найдена
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotInitialized возвращается когда менеджер состояния не смог
	// инициализировать ни одно хранилище
	ErrNotInitialized = errors.New("state manager not initialized")

	// ErrCredentials возвращается при отсутствующем или некорректном
	// файле учетных данных удаленного хранилища
	ErrCredentials = errors.New("invalid credentials")

	// ErrDatabaseConnection возвращается при ошибке подключения к БД
	ErrDatabaseConnection = errors.New("database connection error")
)
