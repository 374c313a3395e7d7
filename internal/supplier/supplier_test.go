package supplier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail_recrawl_v1/internal/model"
)

// ==================== 辅助函数 ====================

func feedProducts(from, n int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, map[string]any{
			"parent_product_id": fmt.Sprintf("P%03d", i),
			"name":              "Item",
			"variants": []map[string]any{{
				"color_name":     "Black",
				"original_price": "49.00",
				"sizes":          []map[string]any{{"label": "M", "in_stock": true}},
			}},
		})
	}
	return out
}

func newFeedServer(t *testing.T, total int) (*httptest.Server, *int32) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		from := (page - 1) * limit
		n := min(limit, max(total-from, 0))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"products": feedProducts(from, n),
			"has_more": from+n < total,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// ==================== FeedSupplier 测试 ====================

func TestFeedSupplier_FetchAllPages(t *testing.T) {
	srv, calls := newFeedServer(t, 5)
	s := NewFeedSupplier("aritzia", FeedOptions{URL: srv.URL, PageSize: 2})

	products, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 5)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	assert.Equal(t, "P000", products[0].ParentProductID)
	assert.Equal(t, "P004", products[4].ParentProductID)
	assert.Equal(t, "49", products[0].Variants[0].OriginalPrice.String())
	assert.True(t, products[0].Variants[0].Sizes[0].InStock)
}

func TestFeedSupplier_SendsUserAgent(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"products": [], "has_more": false}`))
	}))
	t.Cleanup(srv.Close)

	s := NewFeedSupplier("aritzia", FeedOptions{URL: srv.URL, UserAgent: "catalog-bot/2.0"})
	_, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "catalog-bot/2.0", got.Load())
}

func TestFeedSupplier_ExactMultipleStopsOnHasMore(t *testing.T) {
	srv, calls := newFeedServer(t, 4)
	s := NewFeedSupplier("aritzia", FeedOptions{URL: srv.URL, PageSize: 2})

	products, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 4)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestFeedSupplier_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"products": feedProducts(0, 1), "has_more": false})
	}))
	defer srv.Close()

	s := NewFeedSupplier("aritzia", FeedOptions{URL: srv.URL, Retries: 2, RetryWait: time.Millisecond})
	products, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFeedSupplier_ErrorStatusFailsWholeFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"products": feedProducts(0, 2), "has_more": true})
	}))
	defer srv.Close()

	s := NewFeedSupplier("aritzia", FeedOptions{URL: srv.URL, PageSize: 2})
	products, err := s.Fetch(context.Background())
	assert.Error(t, err)
	assert.Nil(t, products, "partial crawl must not be returned")
}

func TestFeedSupplier_ContextCanceled(t *testing.T) {
	srv, _ := newFeedServer(t, 3)
	s := NewFeedSupplier("aritzia", FeedOptions{URL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Fetch(ctx)
	assert.Error(t, err)
}

// ==================== StaticSupplier / Registry ====================

func TestStaticSupplier_ReturnsCopy(t *testing.T) {
	s := NewStaticSupplier("replay", []model.RawProduct{{ParentProductID: "A"}})

	first, err := s.Fetch(context.Background())
	require.NoError(t, err)
	first[0].ParentProductID = "changed"

	second, _ := s.Fetch(context.Background())
	assert.Equal(t, "A", second[0].ParentProductID)
	assert.Equal(t, "replay", s.Name())
}

func TestRegistry(t *testing.T) {
	r := NewFeedRegistry(map[string]string{
		"lululemon": "http://feed/lululemon",
		"aritzia":   "http://feed/aritzia",
	}, FeedOptions{PageSize: 10})

	assert.Equal(t, []string{"aritzia", "lululemon"}, r.Stores())

	s, err := r.Get("aritzia")
	require.NoError(t, err)
	assert.Equal(t, "aritzia", s.Name())

	_, err = r.Get("zara")
	assert.True(t, errors.Is(err, ErrUnknownStore))

	r.Register("zara", NewStaticSupplier("zara", nil))
	_, err = r.Get("zara")
	assert.NoError(t, err)
}
