package payment

import (
	"context"
	"crypto/ecdsa"

	"github.com/shopspring/decimal"
)

// Credential 打包一个参与方的链上身份：钱包地址与签名私钥。
type Credential struct {
	Ordinal    int
	Name       string
	Address    string
	PrivateKey *ecdsa.PrivateKey
}

// Request 描述一笔待执行的转账。金额以法币小数表示（至少两位小数），
// 由具体实现换算为支付通道的最小单位。
type Request struct {
	From   Credential
	To     string
	Amount decimal.Decimal
	Memo   string
}

// Receipt 是支付能力返回的执行凭证。
type Receipt struct {
	TxHash string          `json:"tx_hash"`
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Memo   string          `json:"memo,omitempty"`
}

// Client 定义了调用支付能力的统一接口。清算执行器对每笔转账
// 独立调用该接口，单笔失败不影响其它转账。
type Client interface {
	Pay(ctx context.Context, req Request) (*Receipt, error)
}
