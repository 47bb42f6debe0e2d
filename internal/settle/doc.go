// Package settle 把协商产出的清算计划落实为真实转账。
//
// 执行器以受限的并发度逐笔转账，单笔失败被吸收为 failed 记录，
// 绝不阻止其它转账；批次结果按花名册顺序排列，与完成顺序无关。
package settle
