package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/offset/internal/credit"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success(map[string]string{"result": "success"}, func(io.Writer) {
		t.Fatal("text renderer called in json mode")
	})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Success("ignored", func(w io.Writer) { _, _ = io.WriteString(w, "hello\n") })
	require.NoError(t, err)
	assert.Equal(t, "hello\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error(CLIError{Code: "NOT_FOUND", Message: "record not found", RecordID: "abc"}))
	assert.Contains(t, buf.String(), "Error [NOT_FOUND]: record not found")
	assert.Contains(t, buf.String(), "record: abc")
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Fail("retire failed", credit.NewAlreadyRetiredError("abc"))
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ALREADY_RETIRED", resp.Error.Code)
	assert.Equal(t, "abc", resp.Error.RecordID)

	buf.Reset()
	err = formatter.Fail("list failed", errors.New("disk on fire"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "disk on fire")
}

func TestExitError(t *testing.T) {
	inner := errors.New("boom")
	err := WrapExitError(ExitCommandError, "failed to open storage", inner)
	assert.Equal(t, "failed to open storage: boom", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ExitFailure, GetExitCode(inner))
	assert.False(t, IsReported(err))
}

func TestRenderTable_PlainWhenNotTerminal(t *testing.T) {
	buf := &bytes.Buffer{}
	out := renderTable(buf, []string{"ID", "Quantity"}, [][]string{{"abc", "1.0000"}, {"def"}},
		[]columnAlignment{alignLeft, alignRight})

	assert.True(t, strings.HasPrefix(out, "+"), out)
	assert.Contains(t, out, "| ID ")
	assert.Contains(t, out, "1.0000")
	assert.Empty(t, renderTable(buf, nil, nil, nil))
}
