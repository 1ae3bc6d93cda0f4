package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/caras/internal/engine"
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

	err := formatter.Error("E_COMMAND", "database not found", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "E_COMMAND", resp.Error.Code)
	assert.Equal(t, "database not found", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"requirement_id": "req-1"}
	err := formatter.Error("QUOTA_EXCEEDED", "flow quota of 2 is already reserved", details)
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

	err := formatter.Success("Deleted 3 reservations")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Deleted 3 reservations")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("E_COMMAND", "database not found", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E_COMMAND]")
	assert.Contains(t, buf.String(), "database not found")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"field": "period"}
	err := formatter.Error("E_COMMAND", "database not found", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E_COMMAND]")
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

			formatter.VerboseLog("Revoking %s", "res-1")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Revoking res-1")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
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
		Code:    "INVALID_CODE",
		Message: "authorization code is required",
		Details: []string{"code"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "INVALID_CODE", decoded.Code)
	assert.Equal(t, "authorization code is required", decoded.Message)
}

func TestOutputFormatter_Render(t *testing.T) {
	buf := &bytes.Buffer{}
	text := func(w io.Writer) error {
		_, err := io.WriteString(w, "3 reservations\n")
		return err
	}

	f := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, f.Render(map[string]int{"count": 3}, text))
	assert.Equal(t, "3 reservations\n", buf.String())

	buf.Reset()
	f.Format = "json"
	require.NoError(t, f.Render(map[string]int{"count": 3}, text))
	assert.JSONEq(t, `{"status":"ok","data":{"count":3}}`, buf.String())
}

func TestOutputFormatter_FailEngineError(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	rejection := &engine.Error{
		Kind:           engine.KindLocked,
		Code:           engine.CodeReservationLocked,
		Message:        "1 reservations carry an authorization code",
		ReservationIDs: []string{"res-1"},
	}
	err := f.Fail("delete reservations", fmt.Errorf("delete reservations: %w", rejection))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, engine.IsLocked(err))

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string       `json:"code"`
			Details ErrorDetails `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "RESERVATION_LOCKED", resp.Error.Code)
	assert.Equal(t, engine.KindLocked, resp.Error.Details.Kind)
	assert.Equal(t, []string{"res-1"}, resp.Error.Details.ReservationIDs)
}

func TestOutputFormatter_FailOtherError(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	err := f.Fail("close task", errors.New("record not found"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Empty(t, buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", WrapExitError(ExitCommandError, "db", errors.New("x")))))
}
