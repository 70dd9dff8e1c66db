package bleproxy

import (
	"os"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("")

var stderrFormat = logging.MustStringFormatter(
	`%{color}%{time:15:04:05.000} %{level:.6s} ▶ %{message}%{color:reset}`,
)

// SetupLogging wires a leveled, colorized stderr backend and returns the
// package logger. The level can be overridden at runtime via
// NETTOOL_LOG_LEVEL without recompiling, the same escape hatch the
// teacher's KR_LOG_LEVEL gave its daemon.
func SetupLogging(prefix string, defaultLevel logging.Level) *logging.Logger {
	backend := logging.NewLogBackend(os.Stderr, prefix, 0)
	logging.SetFormatter(stderrFormat)

	leveled := logging.AddModuleLevel(backend)
	switch os.Getenv("NETTOOL_LOG_LEVEL") {
	case "CRITICAL":
		leveled.SetLevel(logging.CRITICAL, log.Module)
	case "ERROR":
		leveled.SetLevel(logging.ERROR, log.Module)
	case "WARNING":
		leveled.SetLevel(logging.WARNING, log.Module)
	case "NOTICE":
		leveled.SetLevel(logging.NOTICE, log.Module)
	case "INFO":
		leveled.SetLevel(logging.INFO, log.Module)
	case "DEBUG":
		leveled.SetLevel(logging.DEBUG, log.Module)
	default:
		leveled.SetLevel(defaultLevel, log.Module)
	}

	logging.SetBackend(leveled)
	return log
}
