package couchdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// This file contains error handling code for couchdb request
// Possible errors in connecting to couchdb
// 503 Service Unavailable when we cant connect to couchdb or when
// 		 couchdb response is interrupted mid-stream
// 500 When the configuration does not allow us to properly
// 		 call http.NewRequest, ie. wrong couchdb URL

// Native couchdb errors used by the views layer
// 404 Not Found : The requested content could not be found. The content will
// 		include further information, as a JSON object, if available.
// 		**The structure will contain two keys, error and reason.**
//    {"error":"not_found","reason":"deleted"}
//    {"error":"not_found","reason":"missing"}
//    {"error":"not_found","reason":"missing_named_view"}
//    {"error":"not_found","reason":"Database does not exist."}
// 409 Conflict : Request resulted in an update conflict.
// 		{"error":"conflict","reason":"Document update conflict."}
// 400 Bad Request : for views, an invalid combination of parameters.
// 		{"error":"query_parse_error","reason":"Reduce is invalid for map-only views."}

// Error represent an error from couchdb
type Error struct {
	StatusCode  int    `json:"status_code"`
	CouchdbJSON []byte `json:"-"`
	Name        string `json:"error"`
	Reason      string `json:"reason"`
	Original    error  `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("CouchDB(%s): %s", e.Name, e.Reason)
	if e.Original != nil {
		msg += " - " + e.Original.Error()
	}
	return msg
}

// Unwrap returns the original error, if any.
func (e *Error) Unwrap() error {
	return e.Original
}

// JSON returns the json representation of this error
func (e *Error) JSON() map[string]interface{} {
	jsonMap := map[string]interface{}{
		"ok":     false,
		"status": strconv.Itoa(e.StatusCode),
		"error":  e.Name,
		"reason": e.Reason,
	}
	if e.Original != nil {
		jsonMap["original"] = e.Original.Error()
	}
	return jsonMap
}

// IsCouchError returns whether or not the given error is of type
// couchdb.Error.
func IsCouchError(err error) (*Error, bool) {
	var couchErr *Error
	if errors.As(err, &couchErr) {
		return couchErr, true
	}
	return nil, false
}

// IsInternalServerError checks if CouchDB has returned a 5xx code
func IsInternalServerError(err error) bool {
	couchErr, isCouchErr := IsCouchError(err)
	if !isCouchErr {
		return false
	}
	return couchErr.StatusCode/100 == 5
}

// IsNoDatabaseError checks if the given error is a couch no_db_file
// error
func IsNoDatabaseError(err error) bool {
	couchErr, isCouchErr := IsCouchError(err)
	if !isCouchErr {
		return false
	}
	return couchErr.Reason == "no_db_file" ||
		couchErr.Reason == "Database does not exist."
}

// IsNotFoundError checks if the given error is a couch not_found
// error
func IsNotFoundError(err error) bool {
	couchErr, isCouchErr := IsCouchError(err)
	if !isCouchErr {
		return false
	}
	return couchErr.Name == "not_found" ||
		couchErr.Reason == "no_db_file" ||
		couchErr.Reason == "Database does not exist."
}

// IsConflictError checks if the given error is a couch conflict error
func IsConflictError(err error) bool {
	couchErr, isCouchErr := IsCouchError(err)
	if !isCouchErr {
		return false
	}
	return couchErr.StatusCode == http.StatusConflict
}

func newRequestError(originalError error) error {
	return &Error{
		StatusCode: http.StatusServiceUnavailable,
		Name:       "no_couch",
		Reason:     "could not create a request to the server",
		Original:   cleanURLError(originalError),
	}
}

func newConnectionError(originalError error) error {
	return &Error{
		StatusCode: http.StatusServiceUnavailable,
		Name:       "no_couch",
		Reason:     "could not create connection with the server",
		Original:   cleanURLError(originalError),
	}
}

func newIOReadError(originalError error) error {
	return &Error{
		StatusCode: http.StatusServiceUnavailable,
		Name:       "no_couch",
		Reason:     "could not read data from the server",
		Original:   cleanURLError(originalError),
	}
}

func newBadIDError(id string) error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Name:       "bad_id",
		Reason:     fmt.Sprintf("Unsuported couchdb operation %s", id),
	}
}

func newCouchdbError(statusCode int, couchdbJSON []byte) error {
	var err = &Error{
		CouchdbJSON: couchdbJSON,
	}
	parseErr := json.Unmarshal(couchdbJSON, err)
	if parseErr != nil {
		err.Name = "wrong_json"
		err.Reason = parseErr.Error()
	}
	err.StatusCode = statusCode
	return err
}

// NewNotFoundError returns the error given by CouchDB for a missing document.
func NewNotFoundError(reason string) *Error {
	return &Error{
		StatusCode: http.StatusNotFound,
		Name:       "not_found",
		Reason:     reason,
	}
}

// NewConflictError returns the error given by CouchDB on an update conflict.
func NewConflictError() *Error {
	return &Error{
		StatusCode: http.StatusConflict,
		Name:       "conflict",
		Reason:     "Document update conflict.",
	}
}

// NewQueryParseError returns the error given by CouchDB for an invalid
// combination of view parameters.
func NewQueryParseError(reason string) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Name:       "query_parse_error",
		Reason:     reason,
	}
}

func cleanURLError(e error) error {
	if erru, ok := e.(*url.Error); ok {
		u, err := url.Parse(erru.URL)
		if err != nil {
			return erru
		}
		if u.User == nil {
			return erru
		}
		u.User = nil
		return &url.Error{
			Op:  erru.Op,
			URL: u.String(),
			Err: erru.Err,
		}
	}
	return e
}
