// Package config 负责加载 chainpilotd 的 JSON 配置文件，并为缺省字段补齐
// 合理的默认值。链端点的定义独立存放在 YAML 文件中，由 internal/chain 解析。
package config
