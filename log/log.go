package log

import (
	"fmt"
	"github.com/go-stack/stack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"os"
	"sync/atomic"
)

type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

type Logger interface {
	// New returns a child logger with ctx prepended to every record.
	New(ctx ...interface{}) Logger

	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

type Config struct {
	Verbosity  int
	File       string
	MaxSizeMb  int
	MaxBackups int
	Json       bool
}

var backend atomic.Value

func init() {
	backend.Store(newSugared(Config{Verbosity: int(LvlInfo)}, os.Stderr))
}

// Setup replaces the process-wide backend. Loggers created before the call pick up
// the new backend.
func Setup(cfg Config) {
	var sink zapcore.WriteSyncer = zapcore.AddSync(os.Stderr)
	if cfg.File != "" {
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMb,
			MaxBackups: cfg.MaxBackups,
		}))
	}
	backend.Store(newSugared(cfg, sink))
}

func newSugared(cfg Config, sink zapcore.WriteSyncer) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if cfg.Json {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(zapLevel(Lvl(cfg.Verbosity))))
	return zap.New(core).Sugar()
}

func zapLevel(lvl Lvl) zapcore.Level {
	switch {
	case lvl <= LvlCrit:
		return zapcore.DPanicLevel
	case lvl == LvlError:
		return zapcore.ErrorLevel
	case lvl == LvlWarn:
		return zapcore.WarnLevel
	case lvl == LvlInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

type logger struct {
	ctx []interface{}
}

var root = &logger{}

func Root() Logger {
	return root
}

func New(ctx ...interface{}) Logger {
	return root.New(ctx...)
}

func (l *logger) New(ctx ...interface{}) Logger {
	child := &logger{ctx: make([]interface{}, 0, len(l.ctx)+len(ctx))}
	child.ctx = append(child.ctx, l.ctx...)
	child.ctx = append(child.ctx, normalize(ctx)...)
	return child
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	sugar := backend.Load().(*zap.SugaredLogger)
	kv := make([]interface{}, 0, len(l.ctx)+len(ctx))
	kv = append(kv, l.ctx...)
	kv = append(kv, normalize(ctx)...)
	switch lvl {
	case LvlCrit:
		kv = append(kv, "stack", fmt.Sprintf("%+v", stack.Trace().TrimRuntime()))
		sugar.DPanicw(msg, kv...)
	case LvlError:
		sugar.Errorw(msg, kv...)
	case LvlWarn:
		sugar.Warnw(msg, kv...)
	case LvlInfo:
		sugar.Infow(msg, kv...)
	default:
		sugar.Debugw(msg, kv...)
	}
}

// normalize returns a copy of ctx with string keys, padded so the backend never
// reports a dangling key.
func normalize(ctx []interface{}) []interface{} {
	result := make([]interface{}, len(ctx), len(ctx)+1)
	copy(result, ctx)
	if len(result)%2 != 0 {
		result = append(result, nil)
	}
	for i := 0; i < len(result); i += 2 {
		if _, ok := result[i].(string); !ok {
			result[i] = fmt.Sprintf("%v", result[i])
		}
	}
	return result
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

func Trace(msg string, ctx ...interface{}) { root.write(LvlTrace, msg, ctx) }
func Debug(msg string, ctx ...interface{}) { root.write(LvlDebug, msg, ctx) }
func Info(msg string, ctx ...interface{})  { root.write(LvlInfo, msg, ctx) }
func Warn(msg string, ctx ...interface{})  { root.write(LvlWarn, msg, ctx) }
func Error(msg string, ctx ...interface{}) { root.write(LvlError, msg, ctx) }
func Crit(msg string, ctx ...interface{})  { root.write(LvlCrit, msg, ctx) }
