package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"davbridge/internal/codec"
	"davbridge/internal/ident"
)

func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &out
	err := app.Run(append([]string{"davbridge"}, args...))
	return out.String(), err
}

func TestEncodeRecord(t *testing.T) {
	cd := codec.New(ident.NewSequence("cli"))

	rec, err := encodeRecord(cd, kindContact, "", []byte(`{"firstName":"Jane","lastName":"Smith","email":"jane@example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, "cli-1", rec.UID)
	assert.Contains(t, string(rec.Body), "FN:Jane Smith\r\n")

	rec, err = encodeRecord(cd, kindEvent, "fixed",
		[]byte(`{"summary":"x","start":"2025-03-15T10:00:00Z","end":"2025-03-15T11:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "fixed", rec.UID)
	assert.Contains(t, string(rec.Body), "UID:fixed\r\n")

	_, err = encodeRecord(cd, kindEvent, "", []byte(`{`))
	assert.Error(t, err)

	_, err = encodeRecord(cd, kindEvent, "", []byte(`{"summary":"x"}`))
	assert.Error(t, err)
}

func TestEncodeDecodeCommands(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "event.json")
	require.NoError(t, os.WriteFile(in,
		[]byte(`{"summary":"Review","start":"2025-03-15T10:00:00Z","end":"2025-03-15T11:00:00Z"}`), 0o644))

	ics, err := runApp(t, "", "encode", "--kind", "event", "--uid", "u1", "--file", in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ics, "BEGIN:VCALENDAR\r\n"))

	out, err := runApp(t, ics, "decode", "--kind", "event")
	require.NoError(t, err)

	var events []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0]["uid"])
	assert.Equal(t, "Review", events[0]["summary"])
}

func TestDecodeGarbageYieldsEmptyList(t *testing.T) {
	out, err := runApp(t, "garbage", "decode", "--kind", "contact")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestKindFlagRejectsUnknown(t *testing.T) {
	_, err := runApp(t, "", "decode", "--kind", "todo")
	assert.Error(t, err)
}
