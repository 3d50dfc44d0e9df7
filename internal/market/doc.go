// Package market 提供只读行情查询能力，封装对外部行情接口的
// 现价与 24 小时走势请求，并带可插拔的结果缓存。
package market
