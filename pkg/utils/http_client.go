package utils

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ClientOptions HTTP 客户端参数
type ClientOptions struct {
	Timeout   time.Duration
	UserAgent string
	Retries   int
	RetryWait time.Duration
}

// NewHTTPClient 创建一个配置好超时和重试的 Resty 客户端
// 它是全系统统一的外部请求入口
func NewHTTPClient(opts ClientOptions) *resty.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Retail-Recrawl/1.0"
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json")

	if opts.Retries > 0 {
		client.SetRetryCount(opts.Retries).
			SetRetryWaitTime(opts.RetryWait).
			SetRetryMaxWaitTime(10 * opts.RetryWait).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
			})
	}
	return client
}
