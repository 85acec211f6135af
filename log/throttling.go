package log

import (
	"fmt"
	"github.com/patrickmn/go-cache"
	"time"
)

// ThrottlingLogger writes a given message at most once per period. Messages are
// keyed by text plus the value of the first context pair, so "clamped" warnings for
// different nodes are not folded together.
type ThrottlingLogger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

func NewThrottlingLogger(baseLogger Logger, period time.Duration) ThrottlingLogger {
	if period <= 0 {
		period = time.Minute
	}
	return &throttlingLogger{
		logger: baseLogger,
		cache:  cache.New(period, period*5),
	}
}

type throttlingLogger struct {
	logger Logger
	cache  *cache.Cache
}

func (t *throttlingLogger) Trace(msg string, ctx ...interface{}) {
	t.logIfNeeded(msg, t.logger.Trace, ctx...)
}

func (t *throttlingLogger) Debug(msg string, ctx ...interface{}) {
	t.logIfNeeded(msg, t.logger.Debug, ctx...)
}

func (t *throttlingLogger) Info(msg string, ctx ...interface{}) {
	t.logIfNeeded(msg, t.logger.Info, ctx...)
}

func (t *throttlingLogger) Warn(msg string, ctx ...interface{}) {
	t.logIfNeeded(msg, t.logger.Warn, ctx...)
}

func (t *throttlingLogger) Error(msg string, ctx ...interface{}) {
	t.logIfNeeded(msg, t.logger.Error, ctx...)
}

func (t *throttlingLogger) Crit(msg string, ctx ...interface{}) {
	t.logIfNeeded(msg, t.logger.Crit, ctx...)
}

func throttleKey(msg string, ctx []interface{}) string {
	if len(ctx) >= 2 {
		return fmt.Sprintf("%s|%v=%v", msg, ctx[0], ctx[1])
	}
	return msg
}

func (t *throttlingLogger) logIfNeeded(msg string, log func(msg string, ctx ...interface{}), ctx ...interface{}) {
	if err := t.cache.Add(throttleKey(msg, ctx), struct{}{}, cache.DefaultExpiration); err == nil {
		log(msg, ctx...)
	}
}
