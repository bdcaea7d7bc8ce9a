package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"curvePool/internal/model"
)

type failingWriter struct {
	calls int
}

func (w *failingWriter) Write(interface{}) error {
	w.calls++
	return errors.New("disk full")
}

type collectingWriter struct {
	records []interface{}
}

func (w *collectingWriter) Write(v interface{}) error {
	w.records = append(w.records, v)
	return nil
}

func TestWriteDecodeErrorLogsWriteFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	w := &failingWriter{}

	writeDecodeError(zap.New(core), w, model.DecodeError{Line: 7, Error: "unknown topic0"})

	require.Equal(t, 1, w.calls)
	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	require.Equal(t, int64(7), fields["line"])
	require.Equal(t, "unknown topic0", fields["decode_error"])
	require.Equal(t, "disk full", fields["error"])
}

func TestWriteDecodeErrorWithoutSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	writeDecodeError(zap.New(core), nil, model.DecodeError{Line: 1, Error: "x"})
	require.Zero(t, logs.Len())

	w := &collectingWriter{}
	writeDecodeError(zap.New(core), w, model.DecodeError{Line: 2, Error: "y"})
	require.Len(t, w.records, 1)
	require.Zero(t, logs.Len())
}
