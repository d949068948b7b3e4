package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBatchBlobReassemblesInInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("blob-ok"))
	}))
	defer srv.Close()

	c := New(testConfig(), nil)

	items := make([]BatchItem, 10)
	for i := range items {
		items[i] = BatchItem{Index: i, Request: Request{Method: http.MethodPost, URL: srv.URL, Body: []byte("x")}}
	}

	results := c.BatchBlob(context.Background(), items, 4)
	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, r := range results {
		if r.Index != i {
			t.Fatalf("results[%d].Index = %d, want %d", i, r.Index, i)
		}
		if r.Err != nil {
			t.Fatalf("results[%d].Err = %v", i, r.Err)
		}
		if string(r.Response.Body) != "blob-ok" {
			t.Fatalf("results[%d].Response.Body = %q", i, r.Response.Body)
		}
	}
}

func TestBatchBlobEmpty(t *testing.T) {
	c := New(testConfig(), nil)
	results := c.BatchBlob(context.Background(), nil, 4)
	if len(results) != 0 {
		t.Fatalf("expected no results for empty input")
	}
}
