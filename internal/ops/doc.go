// Package ops 定义链上操作目录与两个执行器：单操作执行器负责
// 参数校验、会话门禁与错误到文案的转换；批量转账执行器在一次
// nonce 预读之下按序提交多笔转账，单项失败不阻断后续项。
package ops
