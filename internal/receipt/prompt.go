package receipt

import (
	"strings"
)

// BuildPrompt returns the instruction sent alongside the image.
func BuildPrompt(categories []string, fallback string, today string) string {
	var b strings.Builder
	b.WriteString("You are a receipt reader for a personal expense ledger.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Read every purchased line item on the attached receipt photo.\n")
	b.WriteString("- Output STRICT JSON only: a JSON array of objects, nothing else.\n\n")
	b.WriteString("Each object must have these fields:\n")
	b.WriteString("- \"date\": string, the receipt date in ISO format \"YYYY-MM-DD\" (use \"" + today + "\" if no date is printed)\n")
	b.WriteString("- \"item\": string, a short name for the purchase\n")
	b.WriteString("- \"category\": string, one of the categories below\n")
	b.WriteString("- \"amount\": number, the positive price paid for the line\n")
	b.WriteString("- \"type\": always \"Expense\"\n\n")

	b.WriteString("Use ONLY the following categories:\n")
	for _, c := range categories {
		b.WriteString("  - " + c + "\n")
	}
	b.WriteString("\nIf no category fits, use \"" + fallback + "\".\n")
	b.WriteString("Do NOT wrap the response in code fences or add any commentary.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")
	return b.String()
}
