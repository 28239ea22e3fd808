package output

import (
	"fmt"
	"math"
	"strings"

	"github.com/blackwell-systems/bidctl/internal/bidding"
	"github.com/blackwell-systems/bidctl/internal/campaign"
)

// ShareBar renders count as a share of total.
// Example: "██████░░░░ 6"
func ShareBar(count, total, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := 0
	if total > 0 {
		filled = int(math.Round(float64(count) / float64(total) * float64(width)))
	}
	filled = max(0, min(filled, width))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %s", StyleHeader.Render(bar), StyleMuted.Render(fmt.Sprintf("%d", count)))
}

// ChangeArrow returns a styled indicator for a bid change in currency.
// Raising a bid reads as green, lowering it as yellow.
func ChangeArrow(delta float64) string {
	delta = bidding.RoundCents(delta)
	switch {
	case delta > 0:
		return StyleSuccess.Render(fmt.Sprintf("▲ +$%.2f", delta))
	case delta < 0:
		return StyleWarning.Render(fmt.Sprintf("▼ -$%.2f", -delta))
	default:
		return StyleMuted.Render("─")
	}
}

// PercentArrow returns a styled indicator for a percentage change.
func PercentArrow(delta float64) string {
	switch {
	case delta > 0:
		return StyleSuccess.Render(fmt.Sprintf("▲ +%.1f%%", delta))
	case delta < 0:
		return StyleWarning.Render(fmt.Sprintf("▼ %.1f%%", delta))
	default:
		return StyleMuted.Render("─")
	}
}

// Money formats a currency amount.
func Money(f float64) string {
	if f < 0 {
		return fmt.Sprintf("-$%.2f", -f)
	}
	return fmt.Sprintf("$%.2f", f)
}

// ACOS formats a row's ACOS; spend without revenue prints as "∞".
func ACOS(m campaign.Metrics) string {
	if m.UndefinedACOS() {
		return "∞"
	}
	return fmt.Sprintf("%.1f%%", m.ACOS)
}

var actionIcons = map[bidding.Action]string{
	bidding.ActionIncrease: "📈",
	bidding.ActionDecrease: "📉",
	bidding.ActionPause:    "⏸",
	bidding.ActionNoChange: "➖",
}

// ActionLabel renders an action as an upper-case styled label, with an icon
// when color is enabled.
func ActionLabel(a bidding.Action) string {
	label := a.Token()
	if !noColor {
		if icon, ok := actionIcons[a]; ok {
			label = icon + " " + label
		}
	}
	return ActionStyle(a).Render(label)
}

// Section prints a styled section header with a horizontal rule.
func Section(title string) string {
	header := StyleHeader.Render(title)
	rule := StyleMuted.Render(strings.Repeat("─", 66))
	return fmt.Sprintf("\n %s\n %s", header, rule)
}

// KeyValue renders an aligned label and value pair. Values longer than the
// value column are left unpadded rather than wrapped.
func KeyValue(label, value string) string {
	if visualLen(value) > 12 {
		return fmt.Sprintf(" %s%s", StyleLabel.Render(label), StyleBold.Render(value))
	}
	return fmt.Sprintf(" %s%s", StyleLabel.Render(label), StyleValue.Render(value))
}
