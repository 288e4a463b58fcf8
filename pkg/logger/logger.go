package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options - настройки логгера сервиса
type Options struct {
	Level   string
	Service string
	Output  io.Writer
}

// New создает JSON-логгер с заданным уровнем
func New(logLevel string) *logrus.Logger {
	return NewWithOptions(Options{Level: logLevel})
}

// NewWithOptions создает JSON-логгер. Если задано имя сервиса, оно попадает в каждую запись.
func NewWithOptions(opts Options) *logrus.Logger {
	log := logrus.New()

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})

	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	log.SetOutput(opts.Output)

	// Уровень логирования
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel // Уровень по умолчанию, если передан некорректный
	}
	log.SetLevel(level)

	if opts.Service != "" {
		log.AddHook(serviceHook{name: opts.Service})
	}
	return log
}

// serviceHook добавляет имя процесса в каждую запись
type serviceHook struct {
	name string
}

func (h serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["app"]; !ok {
		entry.Data["app"] = h.name
	}
	return nil
}
