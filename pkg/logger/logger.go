// Package logger 建立整個服務共用的 zerolog 記錄器。
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New 依設定的等級建立記錄器，pretty 為 true 時輸出人類可讀格式（開發用）
func New(level string, pretty bool) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, pretty)
}

func NewWithWriter(w io.Writer, level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
