// Package payment 定义支付能力的抽象：转账请求、执行凭证与
// 按参与方序号解析签名凭证的注册表。具体的链上实现见子包 ethereum。
package payment
