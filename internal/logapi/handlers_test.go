package logapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"orion/internal/logdb"
)

// stubStore serves canned rows and records the predicate it was asked for.
type stubStore struct {
	recs      []logdb.Record
	lastWhere string
	lastArgs  []any
}

func (s *stubStore) QueryWhere(_ context.Context, where string, params []any, _ int) ([]logdb.Record, error) {
	s.lastWhere = where
	s.lastArgs = params
	return s.recs, nil
}

func (s *stubStore) Distinct(_ context.Context, column string) ([]string, error) {
	if column == "module" {
		return []string{"a.go", "b.go"}, nil
	}
	return nil, nil
}

func (s *stubStore) EventRunIDs(context.Context) ([]string, error) {
	return []string{"id-2", "id-1"}, nil
}

func (s *stubStore) HourlyStats(context.Context) ([]logdb.HourBucket, error) {
	return []logdb.HourBucket{{Hour: "2025-04-01 11:00", Count: 3}}, nil
}

func testServer(t *testing.T, store Store) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newMux(store))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestDSLQueryPassesPredicate(t *testing.T) {
	store := &stubStore{}
	srv := testServer(t, store)

	var recs []logdb.Record
	getJSON(t, srv.URL+"/logs/dsl?q=level:ERROR+AND+module:bootstrap", &recs)

	if store.lastWhere != "level = ? AND module = ?" {
		t.Fatalf("where = %q", store.lastWhere)
	}
	if len(store.lastArgs) != 2 {
		t.Fatalf("args = %v", store.lastArgs)
	}
}

func TestDSLQueryAppliesMessagePostFilter(t *testing.T) {
	store := &stubStore{recs: []logdb.Record{
		{Message: "connection failed: timeout", Level: "ERROR", Module: "m"},
		{Message: "all fine", Level: "INFO", Module: "m"},
	}}
	srv := testServer(t, store)

	var recs []logdb.Record
	getJSON(t, srv.URL+`/logs/dsl?q=message:"fail.*"`, &recs)

	if store.lastWhere != "" {
		t.Fatalf("message term leaked into SQL: %q", store.lastWhere)
	}
	if len(recs) != 1 || recs[0].Message != "connection failed: timeout" {
		t.Fatalf("post-filter result = %+v", recs)
	}
}

func TestDSLQueryBadPatternIs400(t *testing.T) {
	srv := testServer(t, &stubStore{})

	resp := getJSON(t, srv.URL+`/logs/dsl?q=message:"[unclosed"`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPlainLogsFilter(t *testing.T) {
	store := &stubStore{}
	srv := testServer(t, store)

	var recs []logdb.Record
	getJSON(t, srv.URL+"/logs?level=ERROR&process=poller", &recs)

	if store.lastWhere != "level = ? AND process = ?" {
		t.Fatalf("where = %q", store.lastWhere)
	}
}

func TestFacetEndpoints(t *testing.T) {
	srv := testServer(t, &stubStore{})

	var levels []string
	getJSON(t, srv.URL+"/logs/levels", &levels)
	if !reflect.DeepEqual(levels, []string{"CRITICAL", "ERROR", "WARN", "INFO", "DEBUG"}) {
		t.Fatalf("levels = %v", levels)
	}

	var mods []string
	getJSON(t, srv.URL+"/logs/modules", &mods)
	if !reflect.DeepEqual(mods, []string{"a.go", "b.go"}) {
		t.Fatalf("modules = %v", mods)
	}

	var srcs []string
	getJSON(t, srv.URL+"/logs/sources", &srcs)
	if srcs == nil || len(srcs) != 0 {
		t.Fatalf("empty facet should encode as [], got %v", srcs)
	}

	var ids []string
	getJSON(t, srv.URL+"/logs/event_run_ids", &ids)
	if !reflect.DeepEqual(ids, []string{"id-2", "id-1"}) {
		t.Fatalf("event ids = %v", ids)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := testServer(t, &stubStore{})

	var buckets []logdb.HourBucket
	getJSON(t, srv.URL+"/logs/stats", &buckets)
	if len(buckets) != 1 || buckets[0].Count != 3 {
		t.Fatalf("stats = %v", buckets)
	}
}
