// Package normalize converts raw provider amounts into a human-comparable
// effective price using exact integer arithmetic. No floating point touches
// an amount anywhere in this package.
package normalize

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/swappilot/quoterank/internal/domain"
)

// formatRatio renders numerator/denominator as a decimal string with at most
// the given number of fractional digits, trailing zeros stripped. The division
// is integer scale-and-divide so the result is identical on every platform.
func formatRatio(numerator, denominator *big.Int, decimals int) string {
	if denominator.Sign() == 0 {
		return "0"
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	value := new(big.Int).Mul(numerator, scale)
	value.Quo(value, denominator)

	intPart := new(big.Int)
	fracPart := new(big.Int)
	intPart.QuoRem(value, scale, fracPart)

	frac := strings.TrimRight(fmt.Sprintf("%0*s", decimals, fracPart.String()), "0")
	if frac == "" {
		return intPart.String()
	}
	return intPart.String() + "." + frac
}

// Quote computes the normalized view of a raw quote. Effective price is
// buyAmount/sellAmount in base units; a zero sell amount is treated as a
// denominator of 1 (defined edge case, not an error). Gas and fee USD stay
// nil until price data is available.
func Quote(raw domain.ProviderQuoteRaw, assumptions domain.NormalizationAssumptions) (domain.ProviderQuoteNormalized, error) {
	buyAmount, err := domain.ParseAmount(raw.BuyAmount)
	if err != nil {
		return domain.ProviderQuoteNormalized{}, fmt.Errorf("buy amount: %w", err)
	}
	sellAmount, err := domain.ParseAmount(raw.SellAmount)
	if err != nil {
		return domain.ProviderQuoteNormalized{}, fmt.Errorf("sell amount: %w", err)
	}

	if sellAmount.Sign() == 0 {
		sellAmount = big.NewInt(1)
	}

	return domain.ProviderQuoteNormalized{
		BuyAmount:       raw.BuyAmount,
		EffectivePrice:  formatRatio(buyAmount, sellAmount, assumptions.EffectivePriceScale),
		EstimatedGasUSD: nil,
		FeesUSD:         nil,
	}, nil
}
