// Package history 负责操作流水的持久化。每一次链上操作的执行结果
// 都会落为一条流水记录，支持内存与 MySQL 两种驱动。
package history
