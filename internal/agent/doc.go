// Package agent 是系统的业务核心：回合制控制循环在意图解析与操作
// 执行之间交替推进，直到解析服务给出不再请求操作的终局回答，或者
// 回合预算耗尽。
package agent
