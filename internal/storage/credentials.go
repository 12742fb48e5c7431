package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kirillm/trade-state/internal/domain"
)

// Credentials описывает параметры подключения к удаленному хранилищу.
// Файл учетных данных — JSON с полями host, port, user, password, dbname,
// sslmode; сам путь к файлу и есть признак того, что удаленное хранилище
// сконфигурировано.
type Credentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// LoadCredentials читает и проверяет файл учетных данных
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("%w: malformed credentials file: %v", domain.ErrCredentials, err)
	}

	if creds.Host == "" || creds.User == "" || creds.DBName == "" {
		return nil, fmt.Errorf("%w: host, user and dbname are required", domain.ErrCredentials)
	}
	if creds.Port == 0 {
		creds.Port = 5432
	}
	if creds.SSLMode == "" {
		creds.SSLMode = "disable"
	}

	return &creds, nil
}

// DSN собирает строку подключения для lib/pq
func (c *Credentials) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
