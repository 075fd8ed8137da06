package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/rs/zerolog"
)

type sendFunc func(message string, priority journal.Priority, vars map[string]string) error

// journalWriter forwards zerolog JSON records to the journal. Records that
// cannot be delivered are printed to fallback instead; the caller never
// sees an error.
type journalWriter struct {
	identifier string
	fallback   io.Writer
	send       sendFunc
}

func newJournalWriter(identifier string, fallback io.Writer, send sendFunc) *journalWriter {
	return &journalWriter{identifier: identifier, fallback: fallback, send: send}
}

func (w *journalWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

func (w *journalWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	msg, vars := splitRecord(p)
	vars["SYSLOG_IDENTIFIER"] = w.identifier
	if err := w.send(msg, priority(level), vars); err != nil {
		fmt.Fprintf(w.fallback, "[%s] %s%s\n", strings.ToUpper(levelName(level)), msg, formatFields(vars))
	}
	return len(p), nil
}

func priority(level zerolog.Level) journal.Priority {
	switch level {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return journal.PriDebug
	case zerolog.InfoLevel:
		return journal.PriInfo
	case zerolog.WarnLevel:
		return journal.PriWarning
	case zerolog.ErrorLevel:
		return journal.PriErr
	case zerolog.FatalLevel:
		return journal.PriCrit
	case zerolog.PanicLevel:
		return journal.PriEmerg
	}
	return journal.PriNotice
}

func levelName(level zerolog.Level) string {
	if level == zerolog.NoLevel {
		return "notice"
	}
	return level.String()
}

// splitRecord pulls the message out of a zerolog JSON line and turns the
// remaining fields into journal variables.
func splitRecord(p []byte) (string, map[string]string) {
	vars := map[string]string{}
	var fields map[string]any
	if err := json.Unmarshal(p, &fields); err != nil {
		return strings.TrimSpace(string(p)), vars
	}
	msg, _ := fields[zerolog.MessageFieldName].(string)
	for k, v := range fields {
		switch k {
		case zerolog.MessageFieldName, zerolog.LevelFieldName, zerolog.TimestampFieldName:
			continue
		}
		name := varName(k)
		if name == "" {
			continue
		}
		if s, ok := v.(string); ok {
			vars[name] = s
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		vars[name] = string(b)
	}
	return msg, vars
}

// varName maps a field name onto the journal's [A-Z0-9_] variable alphabet.
func varName(field string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(field) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), "_")
}

func formatFields(vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		if k != "SYSLOG_IDENTIFIER" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", strings.ToLower(k), vars[k])
	}
	return b.String()
}
