package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	msg  string
	pri  journal.Priority
	vars map[string]string
}

func TestJournalWriterSends(t *testing.T) {
	var got []sent
	w := newJournalWriter(Identifier, &bytes.Buffer{}, func(msg string, p journal.Priority, vars map[string]string) error {
		got = append(got, sent{msg, p, vars})
		return nil
	})

	log := zerolog.New(w)
	log.Warn().Str("alias", "Buds").Int("rssi", -50).Msg("Audio device connected")

	require.Len(t, got, 1)
	assert.Equal(t, "Audio device connected", got[0].msg)
	assert.Equal(t, journal.PriWarning, got[0].pri)
	assert.Equal(t, "Buds", got[0].vars["ALIAS"])
	assert.Equal(t, "-50", got[0].vars["RSSI"])
	assert.Equal(t, Identifier, got[0].vars["SYSLOG_IDENTIFIER"])
	assert.NotContains(t, got[0].vars, "LEVEL")
}

func TestJournalWriterFallsBack(t *testing.T) {
	var buf bytes.Buffer
	w := newJournalWriter(Identifier, &buf, func(string, journal.Priority, map[string]string) error {
		return errors.New("journal socket gone")
	})

	log := zerolog.New(w)
	log.Info().Str("path", "/org/bluez/hci0").Msg("Bluetooth monitor started")

	assert.Equal(t, "[INFO] Bluetooth monitor started path=/org/bluez/hci0\n", buf.String())
}

func TestPriority(t *testing.T) {
	assert.Equal(t, journal.PriDebug, priority(zerolog.DebugLevel))
	assert.Equal(t, journal.PriInfo, priority(zerolog.InfoLevel))
	assert.Equal(t, journal.PriErr, priority(zerolog.ErrorLevel))
	assert.Equal(t, journal.PriNotice, priority(zerolog.NoLevel))
}

func TestVarName(t *testing.T) {
	assert.Equal(t, "COMPONENT", varName("component"))
	assert.Equal(t, "REPLACE_ID", varName("replace-id"))
	assert.Equal(t, "X", varName("_x"))
	assert.Empty(t, varName("__"))
}

func TestSplitRecordNonJSON(t *testing.T) {
	msg, vars := splitRecord([]byte("plain text\n"))
	assert.Equal(t, "plain text", msg)
	assert.Empty(t, vars)
}

func TestNew(t *testing.T) {
	l, err := New(&Config{Level: "warn", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, l.GetLevel())

	l, err = New(&Config{Level: "warn", Debug: true, Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())

	_, err = New(&Config{Level: "loud"})
	assert.Error(t, err)
}
