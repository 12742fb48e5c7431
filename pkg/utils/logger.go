package utils

import (
	"io"
	"log"
	"os"
)

// Log определяет интерфейс логирования, внедряемый в компоненты.
// Тесты подставляют свою реализацию и перехватывают диагностику,
// не завися от общепроцессной настройки логгера.
type Log interface {
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Logger реализует Log поверх стандартного log.Logger
type Logger struct {
	level  LogLevel
	logger *log.Logger
}

// NewLogger создает логгер с выводом в stdout
func NewLogger(levelStr string) *Logger {
	return NewLoggerWithOutput(levelStr, os.Stdout)
}

// NewLoggerWithOutput создает логгер с заданным приемником вывода
func NewLoggerWithOutput(levelStr string, out io.Writer) *Logger {
	var level LogLevel
	switch levelStr {
	case "debug":
		level = DEBUG
	case "info":
		level = INFO
	case "warn":
		level = WARN
	case "error":
		level = ERROR
	default:
		level = INFO
	}

	return &Logger{
		level:  level,
		logger: log.New(out, "", log.LstdFlags),
	}
}

func (l *Logger) Debug(format string, v ...interface{}) {
	if l.level <= DEBUG {
		l.logger.Printf("[DEBUG] "+format, v...)
	}
}

func (l *Logger) Info(format string, v ...interface{}) {
	if l.level <= INFO {
		l.logger.Printf("[INFO] "+format, v...)
	}
}

func (l *Logger) Warn(format string, v ...interface{}) {
	if l.level <= WARN {
		l.logger.Printf("[WARN] "+format, v...)
	}
}

func (l *Logger) Error(format string, v ...interface{}) {
	if l.level <= ERROR {
		l.logger.Printf("[ERROR] "+format, v...)
	}
}
