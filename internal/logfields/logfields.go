package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyFlow       = "flow"
	KeyStage      = "stage"
	KeyRule       = "rule"
	KeyPath       = "path"
	KeyPattern    = "pattern"
	KeyFiles      = "files"
	KeyResult     = "result"
	KeyDurationMS = "duration_ms"
	KeyAddr       = "addr"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyClients    = "clients"
	KeyBytesIn    = "bytes_in"
	KeyBytesOut   = "bytes_out"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Flow(name string) slog.Attr      { return slog.String(KeyFlow, name) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Rule(name string) slog.Attr      { return slog.String(KeyRule, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Pattern(p string) slog.Attr      { return slog.String(KeyPattern, p) }
func Files(n int) slog.Attr           { return slog.Int(KeyFiles, n) }
func Result(r string) slog.Attr       { return slog.String(KeyResult, r) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Addr(a string) slog.Attr         { return slog.String(KeyAddr, a) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Clients(n int) slog.Attr         { return slog.Int(KeyClients, n) }
func BytesIn(n int64) slog.Attr       { return slog.Int64(KeyBytesIn, n) }
func BytesOut(n int64) slog.Attr      { return slog.Int64(KeyBytesOut, n) }

// Duration renders d as fractional milliseconds under KeyDurationMS.
func Duration(d time.Duration) slog.Attr {
	return DurationMS(float64(d.Nanoseconds()) / 1e6)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
