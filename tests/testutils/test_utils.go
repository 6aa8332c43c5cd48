// Package testutils contains the helpers shared by the tests of the HTTP
// handlers and the integration tests.
package testutils

import (
	"context"
	"flag"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cozy/cozy-autoviews/pkg/autoview"
	"github.com/cozy/cozy-autoviews/pkg/couchdb/memstore"
	"github.com/cozy/cozy-autoviews/web"
	"github.com/gavv/httpexpect/v2"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

var useDebug bool

func init() {
	flag.BoolVar(&useDebug, "debug", false, "display the requests content")
}

// CreateTestClient setup an httpexpect.Expect client used to make http tests.
//
// This init take allow to use the `--debug` flag in your tests in order to
// print the requests/responses content.
//
// example: `go test ./web/views --debug`.
func CreateTestClient(t testing.TB, url string) *httpexpect.Expect {
	var printer httpexpect.Printer

	t.Helper()

	flag.Parse()

	if useDebug {
		printer = httpexpect.NewDebugPrinter(t, true)
	} else {
		printer = httpexpect.NewCompactPrinter(t)
	}

	return httpexpect.WithConfig(httpexpect.Config{
		TestName: t.Name(),
		BaseURL:  url,
		Reporter: httpexpect.NewAssertReporter(t),
		Printers: []httpexpect.Printer{printer},
	})
}

// TODO can be used as a reminder to do something in the future. The test that
// calls TODO will fail after the limit date, which is an efficient way to not
// forget about it.
func TODO(t *testing.T, date string, args ...interface{}) {
	now := time.Now()
	limit, err := time.Parse("2006-01-02", date)
	if err != nil {
		t.Errorf("Invalid date for TODO: %s", err)
	} else if now.After(limit) {
		t.Error(args...)
	}
}

// Fixture is a document of the fixture loaded by LoadFixture.
type Fixture struct {
	ID  string
	Doc map[string]interface{}
}

// Fixtures returns the nine documents doc-1..doc-9 used by the tests of the
// views: key is "key-N", even is whether N is even, n is N, and tags is a
// list of objects with the tags of the document.
func Fixtures() []Fixture {
	var list []Fixture
	for i := 1; i <= 9; i++ {
		list = append(list, Fixture{
			ID: fmt.Sprintf("doc-%d", i),
			Doc: map[string]interface{}{
				"key":  fmt.Sprintf("key-%d", i),
				"even": i%2 == 0,
				"n":    i,
				"tags": []interface{}{
					map[string]interface{}{"t": fmt.Sprintf("t%d", i%3)},
					map[string]interface{}{"t": "all"},
				},
			},
		})
	}
	return list
}

// DocCreator is implemented by memstore.Store and couchdb.Client.
type DocCreator interface {
	CreateNamedDoc(ctx context.Context, id string, doc interface{}) (string, error)
}

// LoadFixture creates the documents of Fixtures in db.
func LoadFixture(t testing.TB, db DocCreator) {
	t.Helper()
	for _, f := range Fixtures() {
		_, err := db.CreateNamedDoc(context.Background(), f.ID, f.Doc)
		require.NoError(t, err)
	}
}

// TestSetup is a test server for the admin API on an in-memory store. The
// server is closed on test cleanup.
type TestSetup struct {
	t     testing.TB
	Store *memstore.Store
	ts    *httptest.Server
}

// NewSetup returns a new TestSetup with an empty store named name.
func NewSetup(t testing.TB, name string) *TestSetup {
	return &TestSetup{t: t, Store: memstore.New(name)}
}

// GetTestServer starts a test server with the admin routes for the given
// views.
func (c *TestSetup) GetTestServer(specs ...*autoview.Spec) *httptest.Server {
	router := echo.New()
	web.SetupRoutes(router, c.Store, specs)
	ts := httptest.NewServer(router)
	c.t.Cleanup(ts.Close)
	c.ts = ts
	return ts
}
