package autoview

import (
	"context"
	"time"

	"github.com/cozy/cozy-autoviews/pkg/couchdb"
	"github.com/cozy/cozy-autoviews/pkg/logger"
	"github.com/cozy/cozy-autoviews/pkg/metrics"
)

// Store is the subset of a CouchDB database used by the views. It is
// implemented by *couchdb.Client and *memstore.Store.
type Store interface {
	// QueryView executes a view, and returns a not_found error if the design
	// doc or the view does not exist.
	QueryView(ctx context.Context, ddoc, view string, req *couchdb.ViewRequest) (*couchdb.ViewResponse, error)
	// PutDesignDoc saves a design doc. Without a revision, it fails with a
	// conflict error if the design doc already exists.
	PutDesignDoc(ctx context.Context, doc *couchdb.DesignDoc) error
	// GetDoc fetches a document.
	GetDoc(ctx context.Context, id string, out interface{}) error
}

func storeLogger(store Store) *logger.Entry {
	if db, ok := store.(interface{ DBName() string }); ok {
		return logger.WithDatabase(db.DBName()).WithNamespace("autoview")
	}
	return logger.WithNamespace("autoview")
}

// View is a view that already exists, in a design doc written by hand.
type View struct {
	store Store
	ddoc  string
	name  string
}

// NewView returns a View for the given design doc (without the _design/
// prefix) and view names.
func NewView(store Store, ddoc, view string) *View {
	return &View{store: store, ddoc: ddoc, name: view}
}

// Query returns a query on all the rows of the view.
func (v *View) Query() *Query {
	return newQuery(v)
}

func (v *View) execute(ctx context.Context, req *couchdb.ViewRequest) (*couchdb.ViewResponse, error) {
	return v.store.QueryView(ctx, v.ddoc, v.name, req)
}

// AutoView is a view generated from a Spec. The design doc is created when
// the view is queried for the first time, which makes it safe to use the
// same Spec from several processes.
type AutoView struct {
	store Store
	spec  *Spec
}

// NewAutoView returns the AutoView for the given Spec.
func NewAutoView(store Store, spec *Spec) *AutoView {
	return &AutoView{store: store, spec: spec}
}

// Spec returns the definition of the view.
func (v *AutoView) Spec() *Spec { return v.spec }

// Query returns a query on all the rows of the view.
func (v *AutoView) Query() *Query {
	return newQuery(v)
}

// execute queries the view. If CouchDB says that the view does not exist,
// the design doc is created and the query is retried once.
func (v *AutoView) execute(ctx context.Context, req *couchdb.ViewRequest) (*couchdb.ViewResponse, error) {
	start := time.Now()
	defer func() {
		metrics.ViewQueryDurations.Observe(time.Since(start).Seconds())
	}()

	name := v.spec.Name()
	res, err := v.store.QueryView(ctx, name, name, req)
	if err == nil {
		metrics.ViewQueries.WithLabelValues(metrics.QueryOutcomeOK).Inc()
		return res, nil
	}
	if !couchdb.IsNotFoundError(err) || couchdb.IsNoDatabaseError(err) {
		return nil, v.failed(err)
	}

	if err := v.Ensure(ctx); err != nil {
		return nil, v.failed(err)
	}
	res, err = v.store.QueryView(ctx, name, name, req)
	if err != nil {
		return nil, v.failed(err)
	}
	metrics.ViewQueries.WithLabelValues(metrics.QueryOutcomeCreated).Inc()
	return res, nil
}

func (v *AutoView) failed(err error) error {
	metrics.ViewQueries.WithLabelValues(metrics.QueryOutcomeError).Inc()
	log := storeLogger(v.store)
	if couchdb.IsInternalServerError(err) {
		log.Errorf("Query on view %s failed: %s", v.spec.Name(), err)
	} else {
		log.Debugf("Query on view %s failed: %s", v.spec.Name(), err)
	}
	return err
}

// Ensure creates the design doc of the view if it does not exist. A conflict
// means that the design doc already exists, and is not an error: an existing
// design doc is never overwritten.
func (v *AutoView) Ensure(ctx context.Context) error {
	log := storeLogger(v.store)
	doc, err := v.spec.DesignDoc()
	if err != nil {
		return err
	}
	err = v.store.PutDesignDoc(ctx, doc)
	switch {
	case err == nil:
		metrics.ViewDefinitions.WithLabelValues(metrics.DefinitionCreated).Inc()
		log.Infof("Design doc %s created (rev %s)", doc.ID, doc.Rev)
		return nil
	case couchdb.IsConflictError(err):
		metrics.ViewDefinitions.WithLabelValues(metrics.DefinitionConflict).Inc()
		log.Debugf("Design doc %s already exists", doc.ID)
		v.checkExisting(ctx, doc)
		return nil
	default:
		metrics.ViewDefinitions.WithLabelValues(metrics.DefinitionError).Inc()
		log.Errorf("Cannot create the design doc %s: %s", doc.ID, err)
		return err
	}
}

// checkExisting warns when the existing design doc has not the views
// expected for the spec. It is kept as is.
func (v *AutoView) checkExisting(ctx context.Context, expected *couchdb.DesignDoc) {
	log := storeLogger(v.store)
	var existing couchdb.DesignDoc
	if err := v.store.GetDoc(ctx, expected.ID, &existing); err != nil {
		log.Debugf("Cannot fetch the design doc %s: %s", expected.ID, err)
		return
	}
	if !couchdb.EqualViews(expected, &existing) {
		log.Warnf("Design doc %s differs from the definition of the view %s, it is not overwritten",
			expected.ID, v.spec.Name())
	}
}
