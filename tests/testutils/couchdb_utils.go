package testutils

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/cozy/cozy-autoviews/pkg/couchdb"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// CouchDBURLEnv is the environment variable that can be used to run the
// integration tests on an existing CouchDB instead of a container.
const CouchDBURLEnv = "AUTOVIEWS_TEST_COUCHDB_URL"

// CouchDBFixture holds the CouchDB test container and its address.
type CouchDBFixture struct {
	Container tc.Container
	URL       string // with the credentials of the admin
}

// StartCouchDB starts a CouchDB container exposed on a random port. The test
// is skipped in short mode, or when docker is not available.
func StartCouchDB(t *testing.T) *CouchDBFixture {
	t.Helper()

	if testing.Short() {
		t.Skip("an integration test needs CouchDB: skipped in short mode")
	}
	if u := os.Getenv(CouchDBURLEnv); u != "" {
		return &CouchDBFixture{URL: u}
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "couchdb:3.3",
		ExposedPorts: []string{"5984/tcp"},
		Env: map[string]string{
			"COUCHDB_USER":     "admin",
			"COUCHDB_PASSWORD": "password",
		},
		WaitingFor: wait.ForHTTP("/_up").
			WithPort("5984/tcp").
			WithStartupTimeout(90 * time.Second),
	}

	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if container != nil {
		t.Cleanup(func() {
			_ = container.Terminate(context.Background())
		})
	}
	if err != nil {
		t.Skipf("cannot start a CouchDB container: %s", err)
	}

	host, err := container.Host(ctx)
	require.NoError(t, err, "failed to get host for CouchDB")
	port, err := container.MappedPort(ctx, "5984/tcp")
	require.NoError(t, err, "failed to get port for CouchDB")

	fixture := &CouchDBFixture{
		Container: container,
		URL:       fmt.Sprintf("http://admin:password@%s:%s/", host, port.Port()),
	}
	t.Logf("CouchDB: http://%s:%s/", host, port.Port())
	return fixture
}

// NewDatabase creates an empty database with a unique name starting with
// prefix, and returns a client for it. The database is destroyed on test
// cleanup.
func (f *CouchDBFixture) NewDatabase(t *testing.T, prefix string) *couchdb.Client {
	t.Helper()

	id, err := uuid.NewV4()
	require.NoError(t, err)
	name := fmt.Sprintf("%s-%x", prefix, id.Bytes()[:6])

	client, err := couchdb.NewClient(couchdb.Options{URL: f.URL, Database: name})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.CheckStatus(ctx)
	require.NoError(t, err, "CouchDB is not reachable")
	require.NoError(t, client.ResetDB(ctx))
	t.Cleanup(func() {
		_ = client.DeleteDB(context.Background())
	})
	return client
}
