package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// CronLogger adapts Logger to robfig/cron's logger interface
// (Info/Error with alternating key/value pairs).
type CronLogger struct {
	L Logger
}

func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	// cron logs every tick at info; keep them at debug to avoid noise.
	c.L.Debug("cron: "+msg, pairs(keysAndValues)...)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.L.Error("cron: "+msg, append(pairs(keysAndValues), Error(err))...)
}

func pairs(kv []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			fields = append(fields, zap.Any(key, nil))
			break
		}
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	return fields
}
