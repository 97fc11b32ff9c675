package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catalog_crawler_v1/internal/api/dto"
	"catalog_crawler_v1/internal/model"
	"catalog_crawler_v1/pkg/net"
)

// ==================== 测试桩 ====================

// catalogServer 以 path → body 的方式模拟上游目录 API
type catalogServer struct {
	*httptest.Server
	mu     sync.Mutex
	routes map[string]string
	hits   map[string]int
}

func newCatalogServer(t *testing.T) *catalogServer {
	cs := &catalogServer{routes: map[string]string{}, hits: map[string]int{}}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}
		cs.mu.Lock()
		body, ok := cs.routes[key]
		cs.hits[key]++
		cs.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *catalogServer) handle(path, body string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.routes[path] = body
}

func (cs *catalogServer) hitCount(path string) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.hits[path]
}

func searchPage(next string, keys ...string) string {
	items := make([]string, 0, len(keys))
	for _, k := range keys {
		items = append(items, fmt.Sprintf(`{"random_key":%q,"more_info_url":"/v4/product/%s"}`, k, k))
	}
	nextJSON := "null"
	if next != "" {
		nextJSON = fmt.Sprintf("%q", next)
	}
	return fmt.Sprintf(`{"results":[%s],"next":%s}`, strings.Join(items, ","), nextJSON)
}

func detailDoc(name string) string {
	return fmt.Sprintf(`{"name1":%q,"price":1000,"stock_status":["ok"],"breadcrumbs":[{"id":1,"title":"Phones","url":"/c/1"}],"products_info":{"result":[{"shop_id":42,"shop_name":"S","shop_name2":"Tehran","price":990}]}}`, name)
}

func newFetcher() *net.Client {
	return net.NewClient(net.ClientConfig{}, nil, zap.NewNop())
}

type countingProgress struct {
	items, skipped atomic.Int64
	pages          atomic.Int64
}

func (p *countingProgress) AddItem()       { p.items.Add(1) }
func (p *countingProgress) AddSkipped()    { p.skipped.Add(1) }
func (p *countingProgress) SetPages(n int) { p.pages.Store(int64(n)) }

type recordingSink struct {
	mu      sync.Mutex
	bundles []*model.Bundle
	failOn  string
}

func (s *recordingSink) Process(_ context.Context, b *model.Bundle) error {
	if s.failOn != "" && b.Product.ID == s.failOn {
		return errors.New("disk full")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles = append(s.bundles, b)
	return nil
}

func (s *recordingSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.bundles))
	for _, b := range s.bundles {
		out = append(out, b.Product.ID)
	}
	return out
}

// ==================== Walker ====================

func TestWalker_FollowsNextAcrossPages(t *testing.T) {
	cs := newCatalogServer(t)
	cs.handle("/search?page=1", searchPage(cs.URL+"/search?page=2", "a", "b"))
	// 相对地址的 next 基于当前页解析
	cs.handle("/search?page=2", searchPage("/search?page=3", "c"))
	cs.handle("/search?page=3", searchPage("", "d", "e"))

	w := NewWalker(newFetcher(), false, 0, zap.NewNop())
	var pagesSeen []int
	w.OnPage = func(n int) { pagesSeen = append(pagesSeen, n) }

	var refs []ItemRef
	pages, err := w.Walk(context.Background(), cs.URL+"/search?page=1", func(r ItemRef) error {
		refs = append(refs, r)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.Equal(t, []int{1, 2, 3}, pagesSeen)
	assert.Equal(t, StateDone, w.State())
	assert.NoError(t, w.Err())

	require.Len(t, refs, 5)
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
	assert.Equal(t, cs.URL+"/v4/product/c", refs[2].DetailURL)
	assert.Equal(t, 2, refs[2].Page)
}

func TestWalker_EmptyNextStringEndsWalk(t *testing.T) {
	cs := newCatalogServer(t)
	cs.handle("/search", `{"results":[],"next":""}`)

	w := NewWalker(newFetcher(), false, 0, zap.NewNop())
	pages, err := w.Walk(context.Background(), cs.URL+"/search", func(ItemRef) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestWalker_MissingResultsIsProtocolError(t *testing.T) {
	cs := newCatalogServer(t)
	cs.handle("/search", `{"next":null}`)

	w := NewWalker(newFetcher(), false, 0, zap.NewNop())
	_, err := w.Walk(context.Background(), cs.URL+"/search", func(ItemRef) error { return nil })

	var pe *PageProtocolError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Reason, "results")
	assert.Equal(t, StateDone, w.State())
}

func TestWalker_BadItemEmitsNothingFromPage(t *testing.T) {
	cs := newCatalogServer(t)
	cs.handle("/search", `{"results":[{"random_key":"a","more_info_url":"/p/a"},{"random_key":"","more_info_url":"/p/b"}],"next":null}`)

	w := NewWalker(newFetcher(), false, 0, zap.NewNop())
	emitted := 0
	_, err := w.Walk(context.Background(), cs.URL+"/search", func(ItemRef) error {
		emitted++
		return nil
	})

	var pe *PageProtocolError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 0, emitted)
}

func TestWalker_CycleDetected(t *testing.T) {
	cs := newCatalogServer(t)
	cs.handle("/search?page=1", searchPage("/search?page=2", "a"))
	cs.handle("/search?page=2", searchPage("/search?page=1", "b"))

	w := NewWalker(newFetcher(), false, 0, zap.NewNop())
	pages, err := w.Walk(context.Background(), cs.URL+"/search?page=1", func(ItemRef) error { return nil })

	var pe *PageProtocolError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Reason, "cycle")
	assert.Equal(t, 2, pages)
	assert.Equal(t, 1, cs.hitCount("/search?page=1"))
}

func TestWalker_MaxPages(t *testing.T) {
	cs := newCatalogServer(t)
	cs.handle("/search?page=1", searchPage("/search?page=2", "a"))
	cs.handle("/search?page=2", searchPage("/search?page=3", "b"))

	w := NewWalker(newFetcher(), false, 2, zap.NewNop())
	pages, err := w.Walk(context.Background(), cs.URL+"/search?page=1", func(ItemRef) error { return nil })

	var pe *PageProtocolError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pages)
}

func TestWalker_FetchErrorStops(t *testing.T) {
	cs := newCatalogServer(t)
	cs.handle("/search?page=1", searchPage("/search?page=2", "a"))

	w := NewWalker(newFetcher(), false, 0, zap.NewNop())
	emitted := 0
	pages, err := w.Walk(context.Background(), cs.URL+"/search?page=1", func(ItemRef) error {
		emitted++
		return nil
	})

	require.True(t, net.IsFetchError(err))
	assert.Equal(t, 1, pages)
	assert.Equal(t, 1, emitted)
}

// ==================== Normalizer ====================

func decodeDetail(t *testing.T, body string) *dto.ProductDetail {
	var doc dto.ProductDetail
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	return &doc
}

func TestNormalizer_SentinelForMissingFields(t *testing.T) {
	doc := decodeDetail(t, `{"name1":"Phone X","name2":"","price":12.6,"stock_status":[],"breadcrumbs":[]}`)

	b, err := NewNormalizer().Normalize(ItemRef{ID: "p1"}, doc)
	require.NoError(t, err)

	assert.Equal(t, "p1", b.Product.ID)
	assert.Equal(t, "Phone X", b.Product.NamePrimary)
	// 存在的空串保留，缺失字段用哨兵
	assert.Equal(t, "", b.Product.NameSecondary)
	assert.Equal(t, model.EmptySentinel, b.Product.PriceText)
	assert.Equal(t, model.EmptySentinel, b.Product.ImageURL)
	assert.Equal(t, int64(13), b.Product.Price)
	assert.False(t, b.Product.InStock)
	assert.Empty(t, b.Offers)
}

func TestNormalizer_MissingPriceIsZero(t *testing.T) {
	doc := decodeDetail(t, `{"name1":"X"}`)

	b, err := NewNormalizer().Normalize(ItemRef{ID: "p1"}, doc)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Product.Price)
}

func TestNormalizer_OffersAndBreadcrumbs(t *testing.T) {
	doc := decodeDetail(t, `{
		"name1":"Phone X",
		"stock_status":["in_stock"],
		"breadcrumbs":[
			{"id":1,"title":"Electronics","url":"/c/1","brand_id":null},
			{"id":2,"title":"Acme","url":"/b/2","brand_id":7},
			{"id":3,"title":"Phones","url":"/c/3","brand_id":0}
		],
		"products_info":{"result":[
			{"shop_id":42,"shop_name":"Shop A","shop_name2":"Tehran","price":1000,"page_url":"https://a"},
			{"shop_id":0,"shop_name":"Shop B","price":1100},
			{"shop_name":"Shop C"}
		]}
	}`)

	b, err := NewNormalizer().Normalize(ItemRef{ID: "p1"}, doc)
	require.NoError(t, err)

	assert.True(t, b.Product.InStock)
	require.Len(t, b.Breadcrumbs, 3)
	assert.False(t, b.Breadcrumbs[0].IsBrand())
	assert.True(t, b.Breadcrumbs[1].IsBrand())
	assert.Equal(t, "7", b.Breadcrumbs[1].BrandID)
	assert.False(t, b.Breadcrumbs[2].IsBrand())

	require.Len(t, b.Offers, 3)
	require.NotNil(t, b.Offers[0].Seller)
	assert.Equal(t, int64(42), b.Offers[0].Seller.ID)
	assert.Equal(t, "Tehran", b.Offers[0].Seller.City)
	assert.True(t, b.Offers[0].InStock)
	assert.Nil(t, b.Offers[1].Seller)
	assert.Nil(t, b.Offers[2].Seller)
	assert.Equal(t, model.EmptySentinel, b.Offers[2].PageURL)
}

func TestNormalizer_RequiredFields(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize(ItemRef{ID: "p1"}, decodeDetail(t, `{"price":1}`))
	var ne *NormalizationError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "name1", ne.Field)

	_, err = n.Normalize(ItemRef{ID: "p2"}, decodeDetail(t, `{"name1":"X","breadcrumbs":[{"title":"no id"}]}`))
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "p2", ne.ItemID)
	assert.Equal(t, "breadcrumbs[0].id", ne.Field)
}

func TestStockList_AcceptsStringAndNull(t *testing.T) {
	b, err := NewNormalizer().Normalize(ItemRef{ID: "p"}, decodeDetail(t, `{"name1":"X","stock_status":"available"}`))
	require.NoError(t, err)
	assert.True(t, b.Product.InStock)

	b, err = NewNormalizer().Normalize(ItemRef{ID: "p"}, decodeDetail(t, `{"name1":"X","stock_status":null}`))
	require.NoError(t, err)
	assert.False(t, b.Product.InStock)
}

// ==================== JobRunner ====================

func TestJobRunner_SkipsFailedDetails(t *testing.T) {
	cs := newCatalogServer(t)
	cs.handle("/search?page=1", searchPage("/search?page=2", "a", "b", "c"))
	cs.handle("/search?page=2", searchPage("", "d", "e"))
	cs.handle("/v4/product/a", detailDoc("A"))
	cs.handle("/v4/product/b", detailDoc("B"))
	// c 没有路由 → 404，d 缺 name1
	cs.handle("/v4/product/d", `{"price":5}`)
	cs.handle("/v4/product/e", detailDoc("E"))

	sink := &recordingSink{}
	runner := NewJobRunner(newFetcher(), sink, RunnerConfig{DetailConcurrency: 2}, zap.NewNop())
	progress := &countingProgress{}

	err := runner.Run(context.Background(), JobSpec{Name: "phones", SeedURL: cs.URL + "/search?page=1"}, progress)
	require.NoError(t, err)

	assert.Equal(t, int64(3), progress.items.Load())
	assert.Equal(t, int64(2), progress.skipped.Load())
	assert.Equal(t, int64(2), progress.pages.Load())
	assert.ElementsMatch(t, []string{"a", "b", "e"}, sink.ids())
}

func TestJobRunner_SinkErrorFailsJob(t *testing.T) {
	cs := newCatalogServer(t)
	cs.handle("/search", searchPage("", "a", "b"))
	cs.handle("/v4/product/a", detailDoc("A"))
	cs.handle("/v4/product/b", detailDoc("B"))

	sink := &recordingSink{failOn: "b"}
	runner := NewJobRunner(newFetcher(), sink, RunnerConfig{DetailConcurrency: 1}, zap.NewNop())
	progress := &countingProgress{}

	err := runner.Run(context.Background(), JobSpec{Name: "phones", SeedURL: cs.URL + "/search"}, progress)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, int64(1), progress.items.Load())
}

func TestJobRunner_WalkErrorFailsAfterDrain(t *testing.T) {
	cs := newCatalogServer(t)
	cs.handle("/search?page=1", searchPage("/search?page=2", "a"))
	cs.handle("/search?page=2", `{"results":null}`)
	cs.handle("/v4/product/a", detailDoc("A"))

	sink := &recordingSink{}
	runner := NewJobRunner(newFetcher(), sink, RunnerConfig{DetailConcurrency: 4}, zap.NewNop())
	progress := &countingProgress{}

	err := runner.Run(context.Background(), JobSpec{Name: "phones", SeedURL: cs.URL + "/search?page=1"}, progress)

	var pe *PageProtocolError
	require.True(t, errors.As(err, &pe))
	// 已派发的条目仍然落库
	assert.Equal(t, []string{"a"}, sink.ids())
	assert.Equal(t, int64(1), progress.items.Load())
}

type panicSink struct{}

func (panicSink) Process(context.Context, *model.Bundle) error { panic("boom") }

func TestJobRunner_PanicBecomesError(t *testing.T) {
	cs := newCatalogServer(t)
	cs.handle("/search", searchPage("", "a"))
	cs.handle("/v4/product/a", detailDoc("A"))

	runner := NewJobRunner(newFetcher(), panicSink{}, RunnerConfig{}, zap.NewNop())
	err := runner.Run(context.Background(), JobSpec{Name: "p", SeedURL: cs.URL + "/search"}, &countingProgress{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
