package crawler

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"catalog_crawler_v1/internal/api/dto"
	"catalog_crawler_v1/pkg/net"
)

// State 分页状态机
type State string

const (
	StateFetchingPage State = "FETCHING_PAGE"
	StateDone         State = "DONE"
)

// ItemRef 列表页中的一个商品引用
type ItemRef struct {
	ID        string
	DetailURL string // 已解析为绝对地址
	Page      int
}

// Walker 沿 next 游标逐页抓取一个分类
// 非并发安全，每个任务一个实例
type Walker struct {
	fetcher  net.Fetcher
	useProxy bool
	maxPages int
	log      *zap.Logger

	state State
	err   error

	// OnPage 每抓完一页回调一次 (已抓页数)
	OnPage func(pages int)
}

func NewWalker(fetcher net.Fetcher, useProxy bool, maxPages int, log *zap.Logger) *Walker {
	return &Walker{
		fetcher:  fetcher,
		useProxy: useProxy,
		maxPages: maxPages,
		log:      log,
		state:    StateFetchingPage,
	}
}

// State 当前状态
func (w *Walker) State() State { return w.state }

// Err 进入 DONE 时携带的错误，正常结束为 nil
func (w *Walker) Err() error { return w.err }

// Walk 从种子页开始抓取，直到 next 为空或出错
// 第 N 页的全部引用交给 emit 之后才会请求第 N+1 页
// emit 返回错误时立即停止
func (w *Walker) Walk(ctx context.Context, seedURL string, emit func(ItemRef) error) (int, error) {
	pages := 0
	visited := make(map[string]struct{})
	current := seedURL

	for {
		if err := ctx.Err(); err != nil {
			return pages, w.finish(err)
		}
		if _, seen := visited[current]; seen {
			return pages, w.finish(&PageProtocolError{URL: current, Reason: "pagination cycle detected"})
		}
		if w.maxPages > 0 && pages >= w.maxPages {
			return pages, w.finish(&PageProtocolError{URL: current, Reason: fmt.Sprintf("exceeded max pages (%d)", w.maxPages)})
		}
		visited[current] = struct{}{}

		var page dto.SearchPage
		if err := w.fetcher.FetchJSON(ctx, current, w.useProxy, &page); err != nil {
			return pages, w.finish(err)
		}
		pages++
		if w.OnPage != nil {
			w.OnPage(pages)
		}

		refs, err := extractRefs(current, pages, &page)
		if err != nil {
			return pages, w.finish(err)
		}

		w.log.Debug("page fetched",
			zap.String("url", current),
			zap.Int("page", pages),
			zap.Int("items", len(refs)),
		)

		for _, ref := range refs {
			if err := emit(ref); err != nil {
				return pages, w.finish(err)
			}
		}

		if page.Next == nil || strings.TrimSpace(*page.Next) == "" {
			return pages, w.finish(nil)
		}

		next, err := net.ResolveURL(current, strings.TrimSpace(*page.Next))
		if err != nil {
			return pages, w.finish(&PageProtocolError{URL: current, Reason: "invalid next url: " + err.Error()})
		}
		current = next
	}
}

func (w *Walker) finish(err error) error {
	w.state = StateDone
	w.err = err
	return err
}

// extractRefs 校验整页后再返回引用，坏页不产生部分输出
func extractRefs(pageURL string, pageNo int, page *dto.SearchPage) ([]ItemRef, error) {
	if page.Results == nil {
		return nil, &PageProtocolError{URL: pageURL, Reason: "missing results field"}
	}

	refs := make([]ItemRef, 0, len(*page.Results))
	for i, item := range *page.Results {
		if item.RandomKey == "" {
			return nil, &PageProtocolError{URL: pageURL, Reason: fmt.Sprintf("results[%d]: missing item id", i)}
		}
		if item.MoreInfoURL == "" {
			return nil, &PageProtocolError{URL: pageURL, Reason: fmt.Sprintf("results[%d]: missing detail url", i)}
		}
		detail, err := net.ResolveURL(pageURL, item.MoreInfoURL)
		if err != nil {
			return nil, &PageProtocolError{URL: pageURL, Reason: fmt.Sprintf("results[%d]: invalid detail url", i)}
		}
		refs = append(refs, ItemRef{ID: item.RandomKey, DetailURL: detail, Page: pageNo})
	}
	return refs, nil
}
