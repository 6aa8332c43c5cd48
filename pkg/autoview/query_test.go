package autoview

import (
	"errors"
	"sync"
	"testing"

	"github.com/cozy/cozy-autoviews/pkg/couchdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step func(q *Query) (*Query, error)

var (
	stepKey     step = func(q *Query) (*Query, error) { return q.Key("key-2") }
	stepRange   step = func(q *Query) (*Query, error) { return q.Range([]interface{}{"a"}, []interface{}{"b"}, false) }
	stepPrefix  step = func(q *Query) (*Query, error) { return q.Prefix(true) }
	stepReverse step = func(q *Query) (*Query, error) { return q.Reverse() }
	stepPage    step = func(q *Query) (*Query, error) { return q.Page(2) }
	stepNoDocs  step = func(q *Query) (*Query, error) { return q.NoFullDocuments() }
	stepGroup   step = func(q *Query) (*Query, error) { return q.Group(1) }
	stepReduce  step = func(q *Query) (*Query, error) { return q.Reduce() }
)

func chain(t *testing.T, steps ...step) *Query {
	t.Helper()
	q := newQuery(nil)
	for _, s := range steps {
		var err error
		q, err = s(q)
		require.NoError(t, err)
	}
	return q
}

func TestQueryDefaults(t *testing.T) {
	req := newQuery(nil).Request()
	assert.Equal(t, &couchdb.ViewRequest{Reduce: false, IncludeDocs: true}, req)
}

func TestQueryRequests(t *testing.T) {
	exclusive := false

	t.Run("Key", func(t *testing.T) {
		req := chain(t, stepKey).Request()
		assert.Equal(t, []interface{}{"key-2"}, req.Key)
		assert.True(t, req.IncludeDocs)
	})

	t.Run("Range", func(t *testing.T) {
		q, err := newQuery(nil).Range([]interface{}{"key-2"}, []interface{}{"key-4"}, true)
		require.NoError(t, err)
		assert.Equal(t, &couchdb.ViewRequest{
			StartKey:     []interface{}{"key-2"},
			EndKey:       []interface{}{"key-4"},
			InclusiveEnd: &exclusive,
			IncludeDocs:  true,
		}, q.Request())
	})

	t.Run("OpenRange", func(t *testing.T) {
		q, err := newQuery(nil).Range(nil, []interface{}{"key-4"}, false)
		require.NoError(t, err)
		req := q.Request()
		assert.Nil(t, req.StartKey)
		assert.Equal(t, []interface{}{"key-4"}, req.EndKey)
		assert.Nil(t, req.InclusiveEnd)
	})

	t.Run("Prefix", func(t *testing.T) {
		req := chain(t, stepPrefix).Request()
		assert.Equal(t, []interface{}{true}, req.StartKey)
		assert.Equal(t, []interface{}{true, couchdb.MaxKey}, req.EndKey)
	})

	t.Run("PrefixReverse", func(t *testing.T) {
		req := chain(t, stepPrefix, stepReverse).Request()
		assert.True(t, req.Descending)
		assert.Equal(t, []interface{}{true, couchdb.MaxKey}, req.StartKey)
		assert.Equal(t, []interface{}{true}, req.EndKey)
	})

	t.Run("Page", func(t *testing.T) {
		req := chain(t, stepPage).Request()
		assert.Equal(t, 2, req.Limit)
		assert.Nil(t, req.StartKey)
		assert.Zero(t, req.Skip)
	})

	t.Run("PageAfter", func(t *testing.T) {
		q, err := chain(t, stepPrefix).PageAfter(2, []interface{}{true, "key-4"}, "doc-4")
		require.NoError(t, err)
		req := q.Request()
		assert.Equal(t, 2, req.Limit)
		assert.Equal(t, []interface{}{true, "key-4"}, req.StartKey)
		assert.Equal(t, []interface{}{true, couchdb.MaxKey}, req.EndKey)
		assert.Equal(t, "doc-4", req.StartKeyDocID)
		assert.Equal(t, 1, req.Skip)
	})

	t.Run("NoFullDocuments", func(t *testing.T) {
		req := chain(t, stepKey, stepNoDocs).Request()
		assert.False(t, req.IncludeDocs)
		assert.False(t, req.Reduce)
	})

	t.Run("Group", func(t *testing.T) {
		q, err := newQuery(nil).Group(0)
		require.NoError(t, err)
		assert.Equal(t, &couchdb.ViewRequest{Reduce: true, Group: true}, q.Request())

		req := chain(t, stepGroup).Request()
		assert.Equal(t, &couchdb.ViewRequest{Reduce: true, GroupLevel: 1}, req)
	})

	t.Run("Reduce", func(t *testing.T) {
		req := chain(t, stepPrefix, stepReduce).Request()
		assert.True(t, req.Reduce)
		assert.False(t, req.IncludeDocs)
		assert.False(t, req.Group)
	})

	t.Run("PageWithoutLimitAllowsGroup", func(t *testing.T) {
		q, err := newQuery(nil).Page(0)
		require.NoError(t, err)
		_, err = q.Group(0)
		assert.NoError(t, err)
	})
}

func TestQueryRefinementOrder(t *testing.T) {
	tests := []struct {
		name   string
		before []step
		next   step
		err    error
		msg    string
	}{
		{
			name:   "KeyAfterRange",
			before: []step{stepRange},
			next:   stepKey,
			err:    ErrInvalidRefinementOrder,
			msg:    "autoview: key cannot follow key, range, prefix, reverse, page, noFullDocuments, group, or reduce",
		},
		{name: "KeyAfterKey", before: []step{stepKey}, next: stepKey, err: ErrInvalidRefinementOrder},
		{name: "PrefixAfterReverse", before: []step{stepReverse}, next: stepPrefix, err: ErrInvalidRefinementOrder},
		{name: "RangeAfterPage", before: []step{stepPage}, next: stepRange, err: ErrInvalidRefinementOrder},
		{
			name:   "ReverseAfterReverse",
			before: []step{stepReverse},
			next:   stepReverse,
			err:    ErrInvalidRefinementOrder,
			msg:    "autoview: reverse cannot follow reverse, page, noFullDocuments, group, or reduce",
		},
		{name: "ReverseAfterPage", before: []step{stepPage}, next: stepReverse, err: ErrInvalidRefinementOrder},
		{
			name:   "PageAfterNoDocs",
			before: []step{stepNoDocs},
			next:   stepPage,
			err:    ErrInvalidRefinementOrder,
			msg:    "autoview: page cannot follow page, noFullDocuments, group, or reduce",
		},
		{
			name:   "NoDocsAfterReduce",
			before: []step{stepReduce},
			next:   stepNoDocs,
			err:    ErrInvalidRefinementOrder,
			msg:    "autoview: noFullDocuments cannot follow noFullDocuments, group, or reduce",
		},
		{name: "GroupAfterNoDocs", before: []step{stepNoDocs}, next: stepGroup, err: ErrInvalidRefinementOrder},
		{name: "ReduceAfterGroup", before: []step{stepGroup}, next: stepReduce, err: ErrInvalidRefinementOrder},
		{
			name:   "GroupAfterPage",
			before: []step{stepPage},
			next:   stepGroup,
			err:    ErrIncompatibleRefinement,
			msg:    "autoview: group is incompatible with page",
		},
		{
			name:   "ReduceAfterReverse",
			before: []step{stepPrefix, stepReverse},
			next:   stepReduce,
			err:    ErrIncompatibleRefinement,
			msg:    "autoview: reduce is incompatible with reverse",
		},
		{
			name:   "GroupAfterReversePage",
			before: []step{stepReverse, stepPage},
			next:   stepGroup,
			err:    ErrIncompatibleRefinement,
			msg:    "autoview: group is incompatible with reverse or page",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			q := chain(t, test.before...)
			before := q.Request()

			next, err := test.next(q)
			assert.Nil(t, next)
			require.ErrorIs(t, err, test.err)
			var rerr *RefinementError
			require.True(t, errors.As(err, &rerr))
			assert.NotEmpty(t, rerr.Conflicts)
			if test.msg != "" {
				assert.EqualError(t, err, test.msg)
			}

			// The failed refinement has not changed the query
			assert.Equal(t, before, q.Request())
		})
	}
}

func TestTransitions(t *testing.T) {
	assert.Len(t, refinementOps, len(transitions))
	for _, op := range refinementOps {
		tr, ok := transitions[op]
		if assert.True(t, ok, op) {
			assert.Greater(t, tr.class, unrefined, op)
		}
	}
	assert.Equal(t, []string{opGroup, opReduce}, conflictsWith(finalization)[1:])
}

func TestQueryValidOrders(t *testing.T) {
	chain(t, stepKey, stepReverse, stepPage, stepNoDocs)
	chain(t, stepRange, stepReverse)
	chain(t, stepPrefix, stepPage)
	chain(t, stepPrefix, stepGroup)
	chain(t, stepPage, stepNoDocs)
	chain(t, stepReverse, stepNoDocs)
	chain(t, stepReduce)
}

func TestQueryInvalidLimits(t *testing.T) {
	_, err := newQuery(nil).Page(-1)
	assert.ErrorIs(t, err, ErrInvalidLimit)
	assert.EqualError(t, err, "autoview: invalid limit: -1")

	_, err = newQuery(nil).Group(-2)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, "group level", verr.Field)
}

func TestQueryIsImmutable(t *testing.T) {
	base := chain(t, stepPrefix)

	limited, err := base.Page(3)
	require.NoError(t, err)
	reduced, err := base.Reduce()
	require.NoError(t, err)

	assert.Zero(t, base.Request().Limit)
	assert.Equal(t, 3, limited.Request().Limit)
	assert.True(t, reduced.Request().Reduce)
	assert.False(t, limited.Request().Reduce)

	// The caller can change its slices and the requests
	key := []interface{}{"a", "b"}
	q, err := newQuery(nil).Key(key...)
	require.NoError(t, err)
	key[0] = "z"
	req := q.Request()
	assert.Equal(t, []interface{}{"a", "b"}, req.Key)
	req.Key.([]interface{})[1] = "z"
	assert.Equal(t, []interface{}{"a", "b"}, q.Request().Key)

	start := []interface{}{"a"}
	q, err = newQuery(nil).Range(start, []interface{}{"b"}, false)
	require.NoError(t, err)
	start[0] = "z"
	assert.Equal(t, []interface{}{"a"}, q.Request().StartKey)

	last := []interface{}{"key-2", 2}
	q, err = newQuery(nil).PageAfter(2, last, "doc-2")
	require.NoError(t, err)
	last[0] = "z"
	req = q.Request()
	assert.Equal(t, []interface{}{"key-2", 2}, req.StartKey)
	req.StartKey.([]interface{})[1] = "z"
	assert.Equal(t, []interface{}{"key-2", 2}, q.Request().StartKey)
	assert.Equal(t, "doc-2", q.Request().StartKeyDocID)
}

func TestQueryConcurrentRefinements(t *testing.T) {
	base := chain(t, stepPrefix)
	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(limit int) {
			defer wg.Done()
			q, err := base.Page(limit)
			if assert.NoError(t, err) {
				assert.Equal(t, limit, q.Request().Limit)
			}
		}(i)
	}
	wg.Wait()
	assert.Zero(t, base.Request().Limit)
}
