// Package negotiate 实现多方分账协商的核心状态机。
//
// 一次协商从固定的花名册与账单出发，经过若干轮自由辩论后进入承诺
// 阶段：每个非收款方给出最终金额，经过提取与纠偏后汇入清算计划；
// 收款方不调用模型，其承诺直接断言为零。对话记录只允许追加，回合
// 内按花名册顺序依次发言，任何一轮补全失败都会使整个协商失败。
package negotiate
