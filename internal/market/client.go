package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	defaultTimeout = 15 * time.Second
)

// symbolIDs 把常见代币符号映射为行情接口使用的标识。未收录的符号
// 按小写原样透传。
var symbolIDs = map[string]string{
	"ETH":  "ethereum",
	"BTC":  "bitcoin",
	"BNB":  "binancecoin",
	"SOL":  "solana",
	"USDT": "tether",
	"USDC": "usd-coin",
}

// Quote 表示一次现价查询结果。
type Quote struct {
	Symbol   string  `json:"symbol"`
	PriceUSD float64 `json:"price_usd"`
}

// Trend 表示 24 小时走势摘要。
type Trend struct {
	Symbol    string  `json:"symbol"`
	OpenUSD   float64 `json:"open_usd"`
	LastUSD   float64 `json:"last_usd"`
	ChangePct float64 `json:"change_pct"`
}

// Config 描述行情客户端的构造参数。
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Cache    Cache
	CacheTTL time.Duration
}

// Client 是只读行情接口的透传客户端。所有请求都无状态，失败直接
// 向上层返回错误，由操作层转换为失败文本。
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	cacheTTL   time.Duration
}

// NewClient 创建行情客户端。cache 可以为 nil，表示不做缓存。
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cfg.Cache,
		cacheTTL:   cfg.CacheTTL,
	}
}

// SpotPrice 查询代币的美元现价。
func (c *Client) SpotPrice(ctx context.Context, symbol string) (Quote, error) {
	id, display := coinID(symbol)
	if id == "" {
		return Quote{}, errors.New("代币符号不能为空")
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, url.QueryEscape(id))
	body, err := c.fetch(ctx, "spot:"+id, endpoint)
	if err != nil {
		return Quote{}, err
	}

	var decoded map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Quote{}, fmt.Errorf("解析现价响应失败: %w", err)
	}
	entry, ok := decoded[id]
	if !ok {
		return Quote{}, fmt.Errorf("行情接口未返回 %s 的价格", display)
	}
	return Quote{Symbol: display, PriceUSD: entry.USD}, nil
}

// Trend24h 查询代币最近 24 小时的走势摘要。
func (c *Client) Trend24h(ctx context.Context, symbol string) (Trend, error) {
	id, display := coinID(symbol)
	if id == "" {
		return Trend{}, errors.New("代币符号不能为空")
	}

	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=1", c.baseURL, url.PathEscape(id))
	body, err := c.fetch(ctx, "trend:"+id, endpoint)
	if err != nil {
		return Trend{}, err
	}

	var decoded struct {
		Prices [][2]float64 `json:"prices"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Trend{}, fmt.Errorf("解析走势响应失败: %w", err)
	}
	if len(decoded.Prices) < 2 {
		return Trend{}, fmt.Errorf("行情接口返回的 %s 走势数据不足", display)
	}

	open := decoded.Prices[0][1]
	last := decoded.Prices[len(decoded.Prices)-1][1]
	change := 0.0
	if open != 0 {
		change = (last - open) / open * 100
	}
	return Trend{Symbol: display, OpenUSD: open, LastUSD: last, ChangePct: change}, nil
}

// fetch 先查缓存，未命中时发起 HTTP GET 并回填缓存。
func (c *Client) fetch(ctx context.Context, cacheKey, endpoint string) ([]byte, error) {
	if c.cache != nil {
		if cached, ok, err := c.cache.Get(ctx, cacheKey); err == nil && ok {
			return []byte(cached), nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("构建行情请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求行情接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("行情接口返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("读取行情响应失败: %w", err)
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, cacheKey, string(body), c.cacheTTL)
	}
	return body, nil
}

func coinID(symbol string) (id string, display string) {
	display = strings.ToUpper(strings.TrimSpace(symbol))
	if display == "" {
		return "", ""
	}
	if mapped, ok := symbolIDs[display]; ok {
		return mapped, display
	}
	return strings.ToLower(display), display
}
