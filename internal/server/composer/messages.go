package composer

import (
	"fmt"
	"strings"

	"token-risk/internal/server/analyzer"
	"token-risk/internal/server/classifier"
	"token-risk/internal/server/model"
	"token-risk/pkg/utils"
)

func userMessage(kind model.FailureKind) string {
	switch kind {
	case model.FailureUnknownToken:
		return "No token data was found for this address. Check the contract address and try again."
	case model.FailureInsufficientData:
		return "No early transfer activity was found for this token yet, so supply concentration could not be measured. Try again once it has traded."
	default:
		return "The market data provider could not be reached right now. Please try again in a minute."
	}
}

func summary(meta *model.TokenMetadata, report *analyzer.Report, a classifier.Assessment) string {
	var b strings.Builder
	name := meta.Symbol
	if name == model.Unknown {
		name = "This token"
	}
	if meta.SupplyKnown() {
		fmt.Fprintf(&b, "%s: the first %d transfers moved %s%% of total supply",
			name, report.SampleSize, report.SupplyPercentage.StringFixed(2))
		if meta.Decimals != nil {
			fmt.Fprintf(&b, " (%s tokens)", utils.FormatUnits(report.TotalAcquired, *meta.Decimals, 2))
		}
		b.WriteString(". ")
	} else {
		fmt.Fprintf(&b, "%s: total supply is unknown, so concentration is reported as 0%%. ", name)
	}
	fmt.Fprintf(&b, "Risk: %s. %s", a.Tier, a.Rationale)
	return b.String()
}
