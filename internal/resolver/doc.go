// Package resolver 定义了意图解析服务的调用边界。解析服务是外部协作方：
// 它接收完整对话与操作目录，返回"终局回答"或"执行某个操作"的裁决。
// 本包只规定契约；具体实现（OpenAI 兼容接口）位于 openai 子包。
package resolver
