package httperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sir_venger/girder_uploader/internal/models"
	"github.com/sir_venger/girder_uploader/pkg/girderproto"
)

func TestWrite_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
	}{
		{models.Validationf("bad size"), http.StatusBadRequest, girderproto.ErrorTypeValidation},
		{fmt.Errorf("lookup: %w", models.ErrUploadNotFound), http.StatusNotFound, girderproto.ErrorTypeNotFound},
		{models.ErrNotFound, http.StatusNotFound, girderproto.ErrorTypeNotFound},
		{models.ErrUnauthorized, http.StatusUnauthorized, girderproto.ErrorTypeAccess},
		{errors.New("disk on fire"), http.StatusInternalServerError, girderproto.ErrorTypeInternal},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		Write(rec, tc.err)

		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		var body girderproto.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.typ, body.Type)
		assert.Equal(t, tc.err.Error(), body.Message)
	}
}

func TestWrite_ChunkRejectedCarriesReceivedOffset(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, &models.ChunkRejectedError{UploadID: "u", Expected: 5, Offset: 3})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body girderproto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Received)
	assert.Equal(t, int64(5), *body.Received)
	assert.Equal(t, "offset", body.Field)
	assert.Contains(t, body.Message, "received 5 bytes")
}
