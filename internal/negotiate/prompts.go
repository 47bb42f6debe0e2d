package negotiate

import (
	"fmt"
	"strings"
)

// noToolsInstruction 明确告知模型这只是假设性的分摊讨论，
// 协商期间绝不允许调用任何支付能力。
const noToolsInstruction = "This is a hypothetical allocation discussion. " +
	"Do NOT invoke any payment capability, wallet, or transfer tool during the negotiation; " +
	"funds move only after the discussion has concluded."

// buildSystemPrompt 构建角色设定：你代表参与方 P。
func buildSystemPrompt(party Party) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You represent %s (party %d) in a bill-splitting negotiation. ", party.Name, party.Ordinal))
	if party.Payer {
		sb.WriteString("You paid the whole bill upfront, so the others owe you their shares. ")
	}
	sb.WriteString("Speak in first person, stay concise, and argue only about who owes what. ")
	sb.WriteString(noToolsInstruction)
	return sb.String()
}

// buildArgumentPrompt 构建辩论轮的提示词：账单、立场与截至当前的全部发言。
func buildArgumentPrompt(session *Session, party Party, round, totalRounds int) string {
	var sb strings.Builder
	writeReceipt(&sb, session)
	writeStance(&sb, party)
	writeTranscript(&sb, session)

	sb.WriteString("## Your task\n")
	sb.WriteString(fmt.Sprintf("Argument round %d of %d. ", round, totalRounds))
	sb.WriteString("React to the prior statements and argue for the allocation you consider fair, ")
	sb.WriteString("in at most three sentences. Do not state a final number yet.\n")
	return sb.String()
}

// buildCommitmentPrompt 构建承诺轮的提示词：只要一个最终数字。
func buildCommitmentPrompt(session *Session, party Party) string {
	var sb strings.Builder
	writeReceipt(&sb, session)
	writeStance(&sb, party)
	writeTranscript(&sb, session)

	sb.WriteString("## Your task\n")
	sb.WriteString("The discussion is over. State the single final figure you will transfer: ")
	sb.WriteString("your share of the items plus your even share of the tip. ")
	sb.WriteString("Reply with digits only, no currency symbol and no other words (for example: 12.50).\n")
	return sb.String()
}

func writeReceipt(sb *strings.Builder, session *Session) {
	sb.WriteString("## Receipt\n")
	for _, item := range session.Items() {
		sb.WriteString(fmt.Sprintf("- %s x%d: $%s\n", item.Name, item.Quantity, item.Price.StringFixed(2)))
	}
	if session.Tip().IsPositive() {
		sb.WriteString(fmt.Sprintf("- Tip (split evenly): $%s\n", session.Tip().StringFixed(2)))
	}
	sb.WriteString(fmt.Sprintf("Grand total: $%s\n\n", session.Total().StringFixed(2)))

	sb.WriteString("## Participants\n")
	for _, p := range session.Parties() {
		role := "owes their share"
		if p.Payer {
			role = "paid the bill upfront"
		}
		sb.WriteString(fmt.Sprintf("- %s (party %d): %s\n", p.Name, p.Ordinal, role))
	}
	sb.WriteString("\n")
}

func writeStance(sb *strings.Builder, party Party) {
	if strings.TrimSpace(party.Stance) == "" {
		return
	}
	sb.WriteString("## Your stance\n")
	sb.WriteString(party.Stance)
	sb.WriteString("\n\n")
}

func writeTranscript(sb *strings.Builder, session *Session) {
	transcript := session.Transcript()
	if len(transcript) == 0 {
		return
	}
	sb.WriteString("## Discussion so far\n")
	for _, turn := range transcript {
		sb.WriteString(fmt.Sprintf("[%s] %s\n", turn.Speaker, turn.Text))
	}
	sb.WriteString("\n")
}
