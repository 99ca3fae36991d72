package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/foodcsp/internal/compiler"
	"github.com/roach88/foodcsp/internal/engine"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E001", "domain failed to load", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "E001", resp.Error.Code)
	assert.Equal(t, "domain failed to load", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"file": "bakery.cue", "line": "42"}
	err := formatter.Error("E002", "schema error", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("Domain valid")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Domain valid")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("E001", "domain failed to load", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E001]")
	assert.Contains(t, buf.String(), "domain failed to load")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"file": "bakery.cue"}
	err := formatter.Error("E001", "domain failed to load", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E001]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Processing %s", "bakery.cue")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Processing bakery.cue")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestOutputFormatter_Render(t *testing.T) {
	data := ListResult{}

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}
		err := formatter.Render(data, func(w io.Writer) error {
			_, err := io.WriteString(w, "rendered\n")
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, "rendered\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}
		err := formatter.Render(data, func(w io.Writer) error {
			t.Fatal("text renderer called for json output")
			return nil
		})
		require.NoError(t, err)

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
	})
}

func TestOutputFormatter_Fail(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "plain error",
			err:      errors.New("boom"),
			wantCode: ErrCodeGeneric,
		},
		{
			name: "validation errors",
			err: fmt.Errorf("add constraint: %w", compiler.ValidationErrors{
				{Field: "participant1", Message: `unknown participant "Eve"`, Code: compiler.ErrUnknownParticipant},
			}),
			wantCode: "E124",
		},
		{
			name:     "load error",
			err:      &LoadError{Code: ErrCodeNotFound, Message: "domain file not found: x.cue"},
			wantCode: ErrCodeNotFound,
		},
		{
			name:     "unknown record",
			err:      &engine.SessionError{Code: engine.ErrCodeUnknownRecord, Message: "no stored constraint has this ID", RecordID: "rec-99"},
			wantCode: ErrCodeUnknownRecord,
		},
		{
			name:     "invalid filter",
			err:      &engine.SessionError{Code: engine.ErrCodeInvalidFilter, Message: "bad filter"},
			wantCode: ErrCodeInvalidFilter,
		},
		{
			name:     "journal",
			err:      &engine.SessionError{Code: engine.ErrCodeJournal, Message: "disk full"},
			wantCode: ErrCodeJournal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			err := formatter.Fail("solve", tt.err)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.True(t, strings.HasPrefix(resp.Error.Message, "solve: "))
		})
	}
}

func TestOutputFormatter_FailText(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Fail("remove", &engine.SessionError{
		Code:     engine.ErrCodeUnknownRecord,
		Message:  "no stored constraint has this ID",
		RecordID: "rec-99",
	})
	require.Error(t, err)
	assert.Equal(t, "Error [E010]: remove: UNKNOWN_RECORD: no stored constraint has this ID (record=rec-99)\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "inner", errors.New("cause")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "inner: cause", WrapExitError(ExitFailure, "inner", errors.New("cause")).Error())
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "E124",
		Message: "validation failed",
		Details: []string{"unknown participant"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "E124", decoded.Code)
	assert.Equal(t, "validation failed", decoded.Message)
}
