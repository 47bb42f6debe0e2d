package money

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// Status 记录金额纠偏的处理结果，供审计使用。
type Status string

const (
	// StatusAccepted 表示提取值在边界内，原样采纳。
	StatusAccepted Status = "accepted"
	// StatusCorrected 表示提取值越界，按小数点错位两位的假设除以 100 后采纳。
	StatusCorrected Status = "corrected"
	// StatusZeroed 表示纠偏后仍然越界，或文本中根本没有数字，强制归零。
	StatusZeroed Status = "zeroed"
)

// amountPattern 匹配可选货币符号后跟的十进制数。只取最左边的一个，
// 后续出现的数字一律忽略。
var amountPattern = regexp.MustCompile(`[$€£¥]?\s*([0-9]+(?:\.[0-9]+)?)`)

// Extract 从自由文本中提取第一个金额。模型的发言可能夹带货币符号、
// 多余的说明甚至多个数字，这里只信任最左边的金额。第二个返回值
// 标记文本中是否出现过数字。
func Extract(text string) (decimal.Decimal, bool) {
	match := amountPattern.FindStringSubmatch(text)
	if match == nil {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(match[1])
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

// Correct 对提取出的金额做边界校验。bound = total × multiplier。
// 金额越界时假设模型把分写成了元，除以 100 再试一次；仍然越界则归零，
// 绝不让不可信的数字流入清算阶段。
//
// 除以 100 的错位假设只是对模型常见口误的猜测，并不能覆盖所有错误
// 模式（比如漏写一位数字），但边界加归零兜底保证了安全性。
func Correct(amount, total decimal.Decimal, multiplier int) (decimal.Decimal, Status) {
	if multiplier <= 0 {
		multiplier = 1
	}
	bound := total.Mul(decimal.NewFromInt(int64(multiplier)))

	if amount.IsNegative() {
		return decimal.Zero, StatusZeroed
	}
	if amount.LessThanOrEqual(bound) {
		return amount, StatusAccepted
	}

	corrected := amount.Div(decimal.NewFromInt(100))
	if corrected.LessThanOrEqual(bound) {
		return corrected, StatusCorrected
	}
	return decimal.Zero, StatusZeroed
}
