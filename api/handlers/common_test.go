package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumifin/autopilot/types"
)

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"id": "t-1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var envelope Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Nil(t, envelope.Error)
	assert.False(t, envelope.Timestamp.IsZero())
}

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		code types.ErrorCode
		want int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrTaskNotFound, http.StatusNotFound},
		{types.ErrTaskAlreadyActive, http.StatusConflict},
		{types.ErrTaskTerminal, http.StatusConflict},
		{types.ErrConnection, http.StatusBadGateway},
		{types.ErrProtocol, http.StatusBadGateway},
		{types.ErrInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, types.NewError(tt.code, "boom"), nil)

			assert.Equal(t, tt.want, rec.Code)

			var envelope Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.False(t, envelope.Success)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, string(tt.code), envelope.Error.Code)
		})
	}
}

func TestWriteErrorExplicitHTTPStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, types.NewNotFoundError("gone"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Goal string `json:"goal"`
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"goal":"x","bogus":1}`))

	err := DecodeJSONBody(rec, req, &dst, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
