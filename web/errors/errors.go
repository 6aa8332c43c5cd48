// Package errors turns the errors of the handlers into JSON responses.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cozy/cozy-autoviews/pkg/autoview"
	"github.com/cozy/cozy-autoviews/pkg/build"
	"github.com/cozy/cozy-autoviews/pkg/couchdb"
	"github.com/cozy/cozy-autoviews/pkg/logger"
	"github.com/labstack/echo/v4"
)

// ErrorNormalized is created by the error handler to normalize any error into
// a struct containing all the elements to create a full HTTP error response.
type ErrorNormalized struct {
	status int
	title  string
	detail string
	inner  error
}

// Status return the HTTP status code associated with the normalized error.
func (e *ErrorNormalized) Status() int {
	return e.status
}

// Title returns the error title string value.
func (e *ErrorNormalized) Title() string {
	if e.title != "" {
		return e.title
	}
	return http.StatusText(e.status)
}

// Detail returns the error detailed string value.
func (e *ErrorNormalized) Detail() string {
	if e.detail != "" {
		return e.detail
	}
	return e.inner.Error()
}

// Object is the JSON object sent for an error.
type Object struct {
	Status string `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// Response is the body of an error response.
type Response struct {
	Errors []Object `json:"errors"`
}

// ToResponse returns the body of the response for the normalized error.
func (e *ErrorNormalized) ToResponse() Response {
	return Response{Errors: []Object{{
		Status: strconv.Itoa(e.Status()),
		Title:  e.Title(),
		Detail: e.Detail(),
	}}}
}

// NormalizeError creates a normalized version of the given error that can be
// used to create an HTTP response.
func NormalizeError(err error) *ErrorNormalized {
	if err == nil {
		return nil
	}

	n := ErrorNormalized{inner: err}

	if he, ok := err.(*echo.HTTPError); ok {
		n.status = he.Code
		if he.Internal != nil {
			n.detail = fmt.Sprintf("%v: %s", he.Message, he.Internal)
			err = he.Internal
		} else {
			n.detail = fmt.Sprintf("%v", he.Message)
		}
	}

	var validation *autoview.ValidationError
	var refinement *autoview.RefinementError
	if errors.As(err, &validation) {
		n.status = http.StatusBadRequest
		n.title = "Invalid parameter"
		n.detail = validation.Error()
	} else if errors.As(err, &refinement) {
		n.status = http.StatusBadRequest
		n.title = "Invalid query"
		n.detail = refinement.Error()
	} else if ce, ok := couchdb.IsCouchError(err); ok {
		n.status = ce.StatusCode
		n.title = ce.Name
		n.detail = ce.Reason
	} else if n.status == 0 {
		n.status = http.StatusInternalServerError
		n.detail = err.Error()
	}

	if n.status == 0 {
		n.status = http.StatusBadGateway
	}
	return &n
}

// ErrorHandler is the default error handler of our APIs.
func ErrorHandler(err error, c echo.Context) {
	req := c.Request()
	errn := NormalizeError(err)

	log := logger.WithNamespace("http")
	if build.IsDevRelease() || errn.Status() >= http.StatusInternalServerError {
		log.Errorf("%s %s %s", req.Method, req.URL.Path, err)
	}

	if c.Response().Committed {
		return
	}

	if req.Method == http.MethodHead {
		err = c.NoContent(errn.Status())
	} else {
		err = c.JSON(errn.Status(), errn.ToResponse())
	}
	if err != nil {
		log.Errorf("%s %s cannot write error: %s", req.Method, req.URL.Path, err)
	}
}
