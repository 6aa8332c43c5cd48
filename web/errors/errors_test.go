package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/cozy/cozy-autoviews/pkg/autoview"
	"github.com/cozy/cozy-autoviews/pkg/couchdb"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeError(t *testing.T) {
	assert.Nil(t, NormalizeError(nil))

	_, invalid := autoview.New(nil, autoview.Options{})
	q := autoview.NewView(nil, "ddoc", "view").Query()
	q, err := q.Page(10)
	require.NoError(t, err)
	_, incompatible := q.Reduce()

	tests := []struct {
		name   string
		err    error
		status int
		title  string
		detail string
	}{
		{
			name:   "validation",
			err:    invalid,
			status: http.StatusBadRequest,
			title:  "Invalid parameter",
			detail: "autoview: key must be a non-empty list of fields",
		},
		{
			name:   "refinement",
			err:    incompatible,
			status: http.StatusBadRequest,
			title:  "Invalid query",
			detail: "autoview: reduce is incompatible with page",
		},
		{
			name:   "couchdb",
			err:    couchdb.NewConflictError(),
			status: http.StatusConflict,
			title:  "conflict",
			detail: "Document update conflict.",
		},
		{
			name:   "http",
			err:    echo.NewHTTPError(http.StatusNotFound, "no such view"),
			status: http.StatusNotFound,
			title:  "Not Found",
			detail: "no such view",
		},
		{
			name:   "http with internal",
			err:    echo.NewHTTPError(http.StatusBadRequest, "invalid parameter limit").SetInternal(strconv.ErrSyntax),
			status: http.StatusBadRequest,
			title:  "Bad Request",
			detail: "invalid parameter limit: invalid syntax",
		},
		{
			name:   "other",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			title:  "Internal Server Error",
			detail: "boom",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			n := NormalizeError(test.err)
			assert.Equal(t, test.status, n.Status())
			assert.Equal(t, test.title, n.Title())
			assert.Equal(t, test.detail, n.Detail())
		})
	}
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/views/key", nil)
	rec := httptest.NewRecorder()
	ErrorHandler(couchdb.NewNotFoundError("missing"), e.NewContext(req, rec))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, Object{Status: "404", Title: "not_found", Detail: "missing"}, body.Errors[0])

	req = httptest.NewRequest(http.MethodHead, "/views/key", nil)
	rec = httptest.NewRecorder()
	ErrorHandler(couchdb.NewNotFoundError("missing"), e.NewContext(req, rec))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}
