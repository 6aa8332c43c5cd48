package couchdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cozy/cozy-autoviews/pkg/logger"
)

// DefaultTimeout is the timeout of the http client used when none is given.
const DefaultTimeout = 10 * time.Second

// JSONDoc is a map representing a simple json object.
type JSONDoc struct {
	M map[string]interface{}
}

// ID returns the identifier field of the document
//
//	"doc-1" == doc.ID()
func (j JSONDoc) ID() string {
	id, _ := j.M["_id"].(string)
	return id
}

// Rev returns the revision field of the document
//
//	"3-1234def1234" == doc.Rev()
func (j JSONDoc) Rev() string {
	rev, _ := j.M["_rev"].(string)
	return rev
}

// Get returns the value of one of the db fields
func (j JSONDoc) Get(key string) interface{} {
	return j.M[key]
}

// MarshalJSON implements json.Marshaller by proxying to internal map
func (j JSONDoc) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.M)
}

// UnmarshalJSON implements json.Unmarshaller by proxying to internal map
func (j *JSONDoc) UnmarshalJSON(bytes []byte) error {
	return json.Unmarshal(bytes, &j.M)
}

// Options are the parameters used to build a Client.
type Options struct {
	// URL is the address of the CouchDB server. The credentials, if any, are
	// extracted and sent with basic auth.
	URL      string
	Database string
	// Client is the http client used for the requests. A client with
	// DefaultTimeout is used if nil.
	Client *http.Client
}

// Client talks to a CouchDB database over HTTP.
type Client struct {
	url    *url.URL
	auth   *url.Userinfo
	dbName string
	client *http.Client
}

// NewClient returns a client for the database described by the options.
func NewClient(opts Options) (*Client, error) {
	if opts.Database == "" {
		return nil, errors.New("couchdb: missing database name")
	}
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("couchdb: invalid URL %q", opts.URL)
	}
	auth := u.User
	u.User = nil
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		url:    u,
		auth:   auth,
		dbName: opts.Database,
		client: client,
	}, nil
}

// DBName returns the name of the database.
func (c *Client) DBName() string { return c.dbName }

// URL returns the address of the server, without the credentials.
func (c *Client) URL() *url.URL {
	u := *c.url
	return &u
}

func (c *Client) dbPath() string {
	return url.PathEscape(c.dbName)
}

func (c *Client) docPath(id string) string {
	if name, ok := strings.CutPrefix(id, "_design/"); ok {
		return c.dbPath() + "/_design/" + url.PathEscape(name)
	}
	return c.dbPath() + "/" + url.PathEscape(id)
}

func (c *Client) makeRequest(ctx context.Context, method, path string, reqbody interface{}, resbody interface{}) error {
	var reqjson []byte
	var err error

	if reqbody != nil {
		reqjson, err = json.Marshal(reqbody)
		if err != nil {
			return err
		}
	}

	log := logger.WithDatabase(c.dbName).WithNamespace("couchdb")
	if log.IsDebug() {
		log.Debugf("request: %s %s %s", method, path, string(bytes.TrimSpace(reqjson)))
	}

	req, err := http.NewRequestWithContext(
		ctx,
		method,
		c.url.String()+path,
		bytes.NewReader(reqjson),
	)
	// Possible err = wrong method, unparsable url
	if err != nil {
		return newRequestError(err)
	}
	req.Header.Add("Accept", "application/json")
	if reqbody != nil {
		req.Header.Add("Content-Type", "application/json")
	}
	if c.auth != nil {
		if p, ok := c.auth.Password(); ok {
			req.SetBasicAuth(c.auth.Username(), p)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	// Possible err = mostly connection failure
	if err != nil {
		err = newConnectionError(err)
		log.Error(err.Error())
		return err
	}
	defer resp.Body.Close()

	if elapsed.Seconds() >= 10 {
		log.Infof("slow request on %s %s (%s)", method, path, elapsed)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body []byte
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			err = newIOReadError(err)
			log.Error(err.Error())
		} else {
			err = newCouchdbError(resp.StatusCode, body)
			log.Debug(err.Error())
		}
		return err
	}
	if resbody == nil {
		return nil
	}

	if log.IsDebug() {
		var data []byte
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return newIOReadError(err)
		}
		log.Debugf("response: %s", string(bytes.TrimSpace(data)))
		err = json.Unmarshal(data, &resbody)
	} else {
		err = json.NewDecoder(resp.Body).Decode(&resbody)
	}

	return err
}

// CreateDB creates the database.
func (c *Client) CreateDB(ctx context.Context) error {
	return c.makeRequest(ctx, http.MethodPut, c.dbPath(), nil, nil)
}

// DeleteDB destroys the database.
func (c *Client) DeleteDB(ctx context.Context) error {
	return c.makeRequest(ctx, http.MethodDelete, c.dbPath(), nil, nil)
}

// ResetDB destroys and recreates the database.
func (c *Client) ResetDB(ctx context.Context) error {
	err := c.DeleteDB(ctx)
	if err != nil && !IsNoDatabaseError(err) {
		return err
	}
	return c.CreateDB(ctx)
}

// GetDoc fetches a document by its ID, out is filled with the document by
// json.Unmarshal-ing. Design documents can be fetched with their
// "_design/name" identifier.
func (c *Client) GetDoc(ctx context.Context, id string, out interface{}) error {
	if id == "" {
		return errors.New("Missing ID for GetDoc")
	}
	return c.makeRequest(ctx, http.MethodGet, c.docPath(id), nil, out)
}

// CreateNamedDoc persists a document with the given ID, and returns its new
// revision. If the document already exists, it returns a 409 error.
func (c *Client) CreateNamedDoc(ctx context.Context, id string, doc interface{}) (string, error) {
	if id == "" || strings.HasPrefix(id, "_") {
		return "", newBadIDError(id)
	}
	var res updateResponse
	if err := c.makeRequest(ctx, http.MethodPut, c.docPath(id), doc, &res); err != nil {
		return "", err
	}
	return res.Rev, nil
}

// CreateDoc persists a document without an ID, and returns the ID and
// revision given by CouchDB.
func (c *Client) CreateDoc(ctx context.Context, doc interface{}) (string, string, error) {
	var res updateResponse
	if err := c.makeRequest(ctx, http.MethodPost, c.dbPath(), doc, &res); err != nil {
		return "", "", err
	}
	if !res.Ok {
		return "", "", errors.New("CouchDB replied with 200 ok=false")
	}
	return res.ID, res.Rev, nil
}

type updateResponse struct {
	ID  string `json:"id"`
	Rev string `json:"rev"`
	Ok  bool   `json:"ok"`
}
