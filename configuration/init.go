package configuration

import (
	"flag"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cristalhq/aconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type config struct {
	humanLog *zap.SugaredLogger
	lock     sync.RWMutex
}

// envConfig overrides read from RABBITLITE_* environment variables
type envConfig struct {
	Config  string `env:"CONFIG" usage:"config file"`
	WorkDir string `env:"WORK_DIR" usage:"service work directory"`
}

var cfg config

var configFile string

// WorkDir absolute path to service working directory
var WorkDir string

func init() {
	// initialize startup logger
	logCfg := zap.NewProductionConfig()

	logCfg.DisableStacktrace = true
	logCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	logCfg.EncoderConfig.LevelKey = ""
	logCfg.EncoderConfig.CallerKey = ""
	logCfg.Encoding = "console"
	logCfg.EncoderConfig.EncodeTime = func(t time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(t.Format(time.RFC3339))
	}

	log, _ := logCfg.Build()

	cfg.humanLog = log.Sugar()

	WorkDir = "/var/lib/rabbitlite"

	var env envConfig
	loader := aconfig.LoaderFor(&env, aconfig.Config{
		SkipDefaults:     true,
		SkipFiles:        true,
		SkipFlags:        true,
		AllowUnknownEnvs: true,
		EnvPrefix:        "RABBITLITE",
	})

	if err := loader.Load(); err != nil {
		cfg.humanLog.Warnw("couldn't load environment overrides", "error", err)
	}

	configFile = env.Config

	if env.WorkDir != "" {
		WorkDir = env.WorkDir
	}

	flag.StringVar(&configFile, "config", configFile, "config file")
	flag.StringVar(&WorkDir, "work-dir", WorkDir, "service work directory")

	var err error
	WorkDir, err = filepath.Abs(WorkDir)
	if err != nil {
		panic(err.Error())
	}
}

// GetLogger return production logger
func GetLogger() *zap.SugaredLogger {
	cfg.lock.RLock()
	defer cfg.lock.RUnlock()

	return cfg.humanLog
}

// GetHumanLogger return production logger
func GetHumanLogger() *zap.SugaredLogger {
	return GetLogger()
}

var configTimeFormatMap = map[string]string{
	"ANSIC":       time.ANSIC,
	"UNIX":        time.UnixDate,
	"RubyDate":    time.RubyDate,
	"RFC822":      time.RFC822,
	"RFC822Z":     time.RFC822Z,
	"RFC850":      time.RFC850,
	"RFC1123":     time.RFC1123,
	"RFC1123Z":    time.RFC1123Z,
	"RFC3339":     time.RFC3339,
	"RFC3339Nano": time.RFC3339Nano,
}

// ConfigureLoggers rebuild logger from config
func ConfigureLoggers(c *LogConfig) error {
	logCfg := zap.NewDevelopmentEncoderConfig()

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Console.Level)); err != nil {
		return err
	}

	if c.Console.Timestamp != nil {
		if f, ok := configTimeFormatMap[c.Console.Timestamp.Format]; !ok {
			GetLogger().Warn("unsupported time format supplied by config. using RFC3339")
			c.Console.Timestamp.Format = time.RFC3339
		} else {
			c.Console.Timestamp.Format = f
		}

		format := c.Console.Timestamp.Format
		logCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format(format))
		}
	} else {
		logCfg.EncodeTime = nil
	}

	logCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	logCfg.StacktraceKey = ""
	consoleEncoder := zapcore.NewConsoleEncoder(logCfg)

	// High-priority output should also go to standard error, and low-priority
	// output should also go to standard out.
	consoleDebugging := zapcore.Lock(os.Stdout)
	consoleErrors := zapcore.Lock(os.Stderr)

	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel && lvl >= level
	})
	lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl < zapcore.ErrorLevel && lvl >= level
	})

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, consoleErrors, highPriority),
		zapcore.NewCore(consoleEncoder, consoleDebugging, lowPriority))

	cfg.lock.Lock()
	cfg.humanLog = zap.New(core).Sugar()
	cfg.lock.Unlock()

	return nil
}
