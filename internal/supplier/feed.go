package supplier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"retail_recrawl_v1/internal/model"
	"retail_recrawl_v1/pkg/utils"
)

const defaultMaxPages = 1000

// FeedOptions 分页商品源参数
type FeedOptions struct {
	URL       string
	UserAgent string
	PageSize  int
	Timeout   time.Duration
	RPS       float64 // <= 0 表示不限速
	Retries   int
	RetryWait time.Duration
	MaxPages  int
}

// feedPage 分页响应
// GET {url}?page=N&limit=M -> {"products": [...], "has_more": true}
type feedPage struct {
	Products []model.RawProduct `json:"products"`
	HasMore  bool               `json:"has_more"`
}

// FeedSupplier 从 JSON 分页接口拉取新鲜商品
type FeedSupplier struct {
	name     string
	url      string
	client   *resty.Client
	limiter  *rate.Limiter
	pageSize int
	maxPages int
}

// NewFeedSupplier 创建分页商品源
func NewFeedSupplier(name string, opts FeedOptions) *FeedSupplier {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}

	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}

	return &FeedSupplier{
		name: name,
		url:  opts.URL,
		client: utils.NewHTTPClient(utils.ClientOptions{
			Timeout:   opts.Timeout,
			UserAgent: opts.UserAgent,
			Retries:   opts.Retries,
			RetryWait: opts.RetryWait,
		}),
		limiter:  rate.NewLimiter(limit, 1),
		pageSize: opts.PageSize,
		maxPages: opts.MaxPages,
	}
}

func (s *FeedSupplier) Name() string { return s.name }

// Fetch 逐页拉取直到 has_more=false 或出现短页
// 任一页失败则整次拉取失败，不返回部分结果
func (s *FeedSupplier) Fetch(ctx context.Context) ([]model.RawProduct, error) {
	var all []model.RawProduct

	for page := 1; ; page++ {
		if page > s.maxPages {
			return nil, fmt.Errorf("feed %s: more than %d pages", s.name, s.maxPages)
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var body feedPage
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"page":  fmt.Sprint(page),
				"limit": fmt.Sprint(s.pageSize),
			}).
			SetResult(&body).
			Get(s.url)
		if err != nil {
			return nil, fmt.Errorf("feed %s page %d: %w", s.name, page, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("feed %s page %d: status %d", s.name, page, resp.StatusCode())
		}

		all = append(all, body.Products...)
		if !body.HasMore || len(body.Products) < s.pageSize {
			break
		}
	}
	return all, nil
}
