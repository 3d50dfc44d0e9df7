// Package api 暴露对话式 REST 接口。每个请求独享一个全新会话，
// 操作层面的失败以 200 加失败文案返回，只有传输层与内部错误才会
// 变成非 2xx 状态码。
package api
