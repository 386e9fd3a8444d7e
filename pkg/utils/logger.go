package utils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger обертка над logrus с фиксированным набором полей. Методы
// WithField/WithFields возвращают новый экземпляр, исходный логгер не
// изменяется.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger создает новый логгер с заданным уровнем и форматом
// ("json" или "text")
func NewLogger(level, format string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return &Logger{entry: logrus.NewEntry(l)}
}

// Logrus возвращает базовый logrus логгер для компонентов, которым
// нужен доступ к нему напрямую
func (l *Logger) Logrus() *logrus.Logger {
	return l.entry.Logger
}

// WithField добавляет поле к логгеру
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields добавляет несколько полей к логгеру
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// Debug логирует сообщение уровня debug
func (l *Logger) Debug(msg string) {
	l.entry.Debug(msg)
}

// Debugf логирует форматированное сообщение уровня debug
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Info логирует сообщение уровня info
func (l *Logger) Info(msg string) {
	l.entry.Info(msg)
}

// Infof логирует форматированное сообщение уровня info
func (l *Logger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Warn логирует сообщение уровня warn
func (l *Logger) Warn(msg string) {
	l.entry.Warn(msg)
}

// Warnf логирует форматированное сообщение уровня warn
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Error логирует сообщение уровня error
func (l *Logger) Error(msg string) {
	l.entry.Error(msg)
}

// Errorf логирует форматированное сообщение уровня error
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// Fatal логирует сообщение уровня fatal и завершает программу
func (l *Logger) Fatal(msg string) {
	l.entry.Fatal(msg)
}

// Fatalf логирует форматированное сообщение уровня fatal и завершает программу
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.entry.Fatalf(format, args...)
}

// Default logger instance
var defaultLogger = NewLogger("info", "text")

// SetDefaultLogger устанавливает логгер по умолчанию
func SetDefaultLogger(logger *Logger) {
	defaultLogger = logger
}

// Debugf логирует форматированное сообщение уровня debug
func Debugf(format string, args ...interface{}) {
	defaultLogger.Debugf(format, args...)
}

// Infof логирует форматированное сообщение уровня info
func Infof(format string, args ...interface{}) {
	defaultLogger.Infof(format, args...)
}

// Warnf логирует форматированное сообщение уровня warn
func Warnf(format string, args ...interface{}) {
	defaultLogger.Warnf(format, args...)
}

// Errorf логирует форматированное сообщение уровня error
func Errorf(format string, args ...interface{}) {
	defaultLogger.Errorf(format, args...)
}
