// Package api 通过 REST 接口暴露链上动作的执行、钱包上下文、调用记录以及
// 运行指标。
package api
