package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
	"github.com/xchain-go/xchain-utxo/chain"
	"github.com/xchain-go/xchain-utxo/wallet"
)

// Subsystem tags of the package loggers.
const (
	SubsystemChain     = "CHNS"
	SubsystemWallet    = "WLLT"
	SubsystemRPCClient = "RPCC"
)

// subsystemUseLoggers maps each subsystem to the function installing its
// logger.
var subsystemUseLoggers = map[string]func(btclog.Logger){
	SubsystemChain:     chain.UseLogger,
	SubsystemWallet:    wallet.UseLogger,
	SubsystemRPCClient: rpcclient.UseLogger,
}

// logWriter implements an io.Writer that outputs to both an output stream
// and the write-end pipe of an initialized log rotator.
type logWriter struct {
	out     io.Writer
	rotator *rotator.Rotator
}

// Write writes the data in p to the output stream and the log rotator.
func (w *logWriter) Write(p []byte) (int, error) {
	if _, err := w.out.Write(p); err != nil {
		return 0, err
	}

	if w.rotator != nil {
		return w.rotator.Write(p)
	}

	return len(p), nil
}

// Logging owns the log backend of the package loggers.
type Logging struct {
	rotator    *rotator.Rotator
	subsystems map[string]btclog.Logger
}

// InitLogging creates a logger per subsystem writing to out and, when
// cfg.LogDir is set, to a rotated log file in it. The levels of
// cfg.DebugLevel are applied.
func InitLogging(cfg *Config, out io.Writer) (*Logging, error) {
	writer := &logWriter{out: out}

	if cfg.LogDir != "" {
		logFile := filepath.Join(cfg.LogDir, defaultLogFilename)

		r, err := initLogRotator(
			logFile, cfg.MaxLogFileSize, cfg.MaxLogFiles,
		)
		if err != nil {
			return nil, err
		}
		writer.rotator = r
	}

	backend := btclog.NewBackend(writer)

	logging := &Logging{
		rotator:    writer.rotator,
		subsystems: make(map[string]btclog.Logger),
	}
	for subsystem, useLogger := range subsystemUseLoggers {
		logger := backend.Logger(subsystem)
		logging.subsystems[subsystem] = logger
		useLogger(logger)
	}

	if err := logging.SetLogLevels(cfg.DebugLevel); err != nil {
		logging.Close()
		return nil, err
	}

	return logging, nil
}

// initLogRotator initializes the log file rotator to write logs to logFile
// and create roll files in the same directory.
func initLogRotator(logFile string, maxFileSizeMB,
	maxFiles int) (*rotator.Rotator, error) {

	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	r, err := rotator.New(logFile, int64(maxFileSizeMB*1024), false,
		maxFiles)
	if err != nil {
		return nil, fmt.Errorf("create file rotator: %w", err)
	}

	return r, nil
}

// SetLogLevels applies a debug level spec: either a single level for every
// subsystem, or a comma separated list of <subsystem>=<level> pairs.
func (l *Logging) SetLogLevels(debugLevel string) error {
	levels, err := parseDebugLevel(debugLevel)
	if err != nil {
		return err
	}

	for subsystem, level := range levels {
		if subsystem == "" {
			for _, logger := range l.subsystems {
				logger.SetLevel(level)
			}

			continue
		}

		l.subsystems[subsystem].SetLevel(level)
	}

	return nil
}

// Logger returns the logger of a subsystem.
func (l *Logging) Logger(subsystem string) (btclog.Logger, bool) {
	logger, ok := l.subsystems[subsystem]
	return logger, ok
}

// Close closes the log file, if any.
func (l *Logging) Close() {
	// Disconnect the package loggers from the closed backend.
	for _, useLogger := range subsystemUseLoggers {
		useLogger(btclog.Disabled)
	}

	if l.rotator != nil {
		l.rotator.Close()
	}
}

// supportedSubsystems returns a sorted slice of the supported subsystems.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemUseLoggers))
	for subsystem := range subsystemUseLoggers {
		subsystems = append(subsystems, subsystem)
	}
	sort.Strings(subsystems)

	return subsystems
}

// parseDebugLevel parses a debug level spec. A global level is returned under
// the empty subsystem.
func parseDebugLevel(debugLevel string) (map[string]btclog.Level, error) {
	levels := make(map[string]btclog.Level)

	// When the spec holds no pairs it is a single global level.
	if !strings.Contains(debugLevel, "=") {
		level, ok := btclog.LevelFromString(debugLevel)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLogLevel,
				debugLevel)
		}
		levels[""] = level

		return levels, nil
	}

	for _, pair := range strings.Split(debugLevel, ",") {
		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: %q is not a "+
				"<subsystem>=<level> pair", ErrInvalidLogLevel,
				pair)
		}

		subsystem := strings.TrimSpace(fields[0])
		if _, ok := subsystemUseLoggers[subsystem]; !ok {
			return nil, fmt.Errorf("%w: unknown subsystem %q, "+
				"supported subsystems %v", ErrInvalidLogLevel,
				subsystem, supportedSubsystems())
		}

		level, ok := btclog.LevelFromString(strings.TrimSpace(fields[1]))
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLogLevel,
				fields[1])
		}
		levels[subsystem] = level
	}

	return levels, nil
}
