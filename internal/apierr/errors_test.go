package apierr

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesIs(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "rift %q not found", "main")
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrPermissionDenied))
	assert.Equal(t, "rift \"main\" not found", wrapped.Message)
}

func TestHTTPStatusAndWireCode(t *testing.T) {
	err := Wrap(ErrPermissionDenied, "not a member")
	assert.Equal(t, 403, HTTPStatus(err))
	assert.Equal(t, "PermissionDenied", WireCode(err))

	plain := errors.New("boom")
	assert.Equal(t, 500, HTTPStatus(plain))
	assert.Equal(t, "", WireCode(plain))
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, Wrap(ErrNameConflict, "project %q already exists", "acme"))

	require.Equal(t, 409, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"NameConflict: project \"acme\" already exists","code":"NameConflict"}`, rec.Body.String())
}

func TestWriteJSONEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, 200, map[string]string{"id": "abc"})
	assert.JSONEq(t, `{"success":true,"data":{"id":"abc"}}`, rec.Body.String())
}
