// Command hkv-server runs a TCP front-end: a listener that serves any
// number of named, in-memory stores to concurrent clients.
package main

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/CylonicRaider/hkv/server"
)

const defaultAddr = "localhost:8311"

func main() {
	log := buildLogger()
	defer log.Sync()
	log = log.Named("main")

	addr := os.Getenv("HKV_ADDR")
	if addr == "" {
		addr = defaultAddr
	}

	srv := server.New(log)
	log.Info("starting hkv-server", zap.String("addr", addr))
	if err := srv.Serve(addr); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

// buildLogger assembles a zap.Logger writing JSON to HKV_LOG_PATH (if
// set, through a rotating lumberjack writer) or to stderr otherwise,
// at the level named by HKV_LOG_LEVEL (defaulting to info).
func buildLogger() *zap.Logger {
	level := zapcore.InfoLevel
	if lv := os.Getenv("HKV_LOG_LEVEL"); lv != "" {
		_ = level.Set(lv)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var sink zapcore.WriteSyncer
	if path := os.Getenv("HKV_LOG_PATH"); path != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	} else {
		sink = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, level)
	return zap.New(core)
}
