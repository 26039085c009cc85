package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// parseLevel maps a --debug-level value to a slog level. ok is false for off.
func parseLevel(s string) (level slog.Level, ok bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "none":
		return 0, false, nil
	case "debug":
		return slog.LevelDebug, true, nil
	case "info":
		return slog.LevelInfo, true, nil
	case "warn", "warning":
		return slog.LevelWarn, true, nil
	case "error", "critical":
		return slog.LevelError, true, nil
	default:
		return 0, false, fmt.Errorf("unknown debug level %q (want off, error, warn, info or debug)", s)
	}
}

// configureLogging installs the default slog logger. Off discards every record.
func configureLogging(debugLevel string, w io.Writer) error {
	level, ok, err := parseLevel(debugLevel)
	if err != nil {
		return err
	}

	if !ok {
		slog.SetDefault(slog.New(slog.DiscardHandler))
		return nil
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return nil
}
