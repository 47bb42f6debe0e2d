package negotiate

import (
	"fmt"
	"strings"

	"SplitChain/internal/money"

	"github.com/shopspring/decimal"
)

// Party 描述一个分账参与方。Ordinal 从 1 开始，按花名册顺序排列。
type Party struct {
	Ordinal int    `json:"ordinal"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Stance  string `json:"stance,omitempty"`
	// Payer 标记垫付账单的一方：协商中永远不欠钱，清算时只收不付。
	Payer bool `json:"payer"`
}

// LineItem 是账单上的一行消费。Price 为该行的总价。
type LineItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Turn 是一条对话记录，带上发言方的序号与名称。
type Turn struct {
	Ordinal int    `json:"ordinal"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Commitment 是一位参与方协商结束后的最终承诺金额。
type Commitment struct {
	Ordinal   int             `json:"ordinal"`
	Raw       string          `json:"raw"`
	Extracted decimal.Decimal `json:"extracted"`
	Corrected decimal.Decimal `json:"corrected"`
	Status    money.Status    `json:"status"`
}

// SettlementPlan 把每个非收款方序号映射到纠偏后的承诺金额。
// 由一次完成的会话派生，创建后不再修改，只被清算执行器消费。
type SettlementPlan map[int]decimal.Decimal

// Session 持有一次协商的花名册、账单与对话记录。
// 对话记录只允许追加：后续每一轮的提示词都由截至当前的完整
// 记录序列化而来，改写历史会破坏各方“看到过什么”的可复现性。
type Session struct {
	parties    []Party
	items      []LineItem
	tip        decimal.Decimal
	total      decimal.Decimal
	transcript []Turn
}

// NewSession 校验花名册与账单并计算不可变的总额。
func NewSession(parties []Party, items []LineItem, tip decimal.Decimal) (*Session, error) {
	if len(parties) < 2 {
		return nil, fmt.Errorf("至少需要两个参与方，当前 %d 个", len(parties))
	}

	payers := 0
	for i, party := range parties {
		if party.Ordinal != i+1 {
			return nil, fmt.Errorf("参与方 %q 的序号应为 %d，实际 %d", party.Name, i+1, party.Ordinal)
		}
		if strings.TrimSpace(party.Name) == "" {
			return nil, fmt.Errorf("参与方 %d 缺少名称", party.Ordinal)
		}
		if party.Payer {
			payers++
		}
	}
	if payers != 1 {
		return nil, fmt.Errorf("必须且只能有一个收款方，当前 %d 个", payers)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("账单为空")
	}
	total := decimal.Zero
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("第 %d 行数量必须为正", i+1)
		}
		if item.Price.IsNegative() {
			return nil, fmt.Errorf("第 %d 行价格不能为负", i+1)
		}
		total = total.Add(item.Price)
	}
	if tip.IsNegative() {
		return nil, fmt.Errorf("小费不能为负")
	}
	total = total.Add(tip)

	return &Session{
		parties: append([]Party(nil), parties...),
		items:   append([]LineItem(nil), items...),
		tip:     tip,
		total:   total,
	}, nil
}

// Append 追加一条对话记录。这是修改对话记录的唯一途径。
func (s *Session) Append(ordinal int, text string) {
	speaker := ""
	if ordinal >= 1 && ordinal <= len(s.parties) {
		speaker = s.parties[ordinal-1].Name
	}
	s.transcript = append(s.transcript, Turn{Ordinal: ordinal, Speaker: speaker, Text: text})
}

// Transcript 返回对话记录的副本。
func (s *Session) Transcript() []Turn {
	return append([]Turn(nil), s.transcript...)
}

// Parties 返回花名册的副本。
func (s *Session) Parties() []Party {
	return append([]Party(nil), s.parties...)
}

// Items 返回账单行的副本。
func (s *Session) Items() []LineItem {
	return append([]LineItem(nil), s.items...)
}

// Tip 返回小费金额。
func (s *Session) Tip() decimal.Decimal {
	return s.tip
}

// Total 返回账单总额（所有行价格之和加小费）。
func (s *Session) Total() decimal.Decimal {
	return s.total
}

// Payer 返回收款方。
func (s *Session) Payer() Party {
	for _, party := range s.parties {
		if party.Payer {
			return party
		}
	}
	// NewSession 保证了恰好一个收款方。
	return Party{}
}
