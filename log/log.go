package log

import (
	"fmt"
	stdlog "log"
	"sync/atomic"
)

type Level int32

const (
	DebugLevel Level = iota
	InfoLevel
	ErrorLevel
)

var level atomic.Int32

func SetLevel(lv Level) {
	level.Store(int32(lv))
}

func Debugf(format string, args ...any) {
	if Level(level.Load()) <= DebugLevel {
		stdlog.Output(2, "[DBG] "+fmt.Sprintf(format, args...))
	}
}

func Info(msg string) {
	if Level(level.Load()) <= InfoLevel {
		stdlog.Output(2, "[INF] "+msg)
	}
}

func Infof(format string, args ...any) {
	if Level(level.Load()) <= InfoLevel {
		stdlog.Output(2, "[INF] "+fmt.Sprintf(format, args...))
	}
}

func Errorf(format string, args ...any) {
	if Level(level.Load()) <= ErrorLevel {
		stdlog.Output(2, "[ERR] "+fmt.Sprintf(format, args...))
	}
}
