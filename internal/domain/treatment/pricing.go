package treatment

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoPriceRule is returned when no variant covers a tooth and the
// treatment type has no default variant. A zero here would be "free
// treatment"; missing configuration is a distinct condition.
var ErrNoPriceRule = errors.New("no price rule matches tooth")

// ErrNoTeethSelected is returned when a quote is requested for an empty
// tooth selection.
var ErrNoTeethSelected = errors.New("no teeth selected")

// PriceForTooth resolves the price to charge for a single tooth. Variants
// are scanned in declared order; the first whose tooth set contains the
// tooth wins. If none matches, the default variant's price is used. When
// variants overlap on a tooth, first-match-wins is a known limitation of
// the catalog data model, not a resolution policy.
func PriceForTooth(variants []PriceVariant, tooth int) (decimal.Decimal, error) {
	for _, v := range variants {
		if v.IsDefault {
			continue
		}
		for _, t := range v.ToothNumbers {
			if t == tooth {
				return v.Price, nil
			}
		}
	}
	for _, v := range variants {
		if v.IsDefault {
			return v.Price, nil
		}
	}
	return decimal.Zero, ErrNoPriceRule
}

// PriceForToothOrZero resolves like PriceForTooth but degrades to zero
// when no rule matches. Callers must treat the zero as a misconfigured
// treatment type, not a legitimate free treatment.
func PriceForToothOrZero(variants []PriceVariant, tooth int) decimal.Decimal {
	price, err := PriceForTooth(variants, tooth)
	if err != nil {
		return decimal.Zero
	}
	return price
}

// DiscountInput carries a discount expressed either as an absolute amount
// or as a percentage of the pre-discount total. Exactly one of the two is
// expected; when both are set the percentage wins.
type DiscountInput struct {
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Percent *decimal.Decimal `json:"percent,omitempty"`
}

// Quote is the computed pricing for a tooth selection.
type Quote struct {
	ToothNumbers    []int           `json:"tooth_numbers"`
	ToothDisplay    string          `json:"tooth_display"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Discount        decimal.Decimal `json:"discount"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	AmountDue       decimal.Decimal `json:"amount_due"`
}

var hundred = decimal.NewFromInt(100)

// QuoteFor computes the total price for a tooth selection and applies a
// discount. Duplicate teeth are deduplicated order-preserving. The
// absolute and percentage discount entry points are kept mutually
// consistent: each is derived from the other, rounded half-up to the
// currency's minor unit. The discount is clamped to [0, total] so the
// amount due never goes negative.
func QuoteFor(variants []PriceVariant, teeth []int, discount DiscountInput) (*Quote, error) {
	teeth = dedupeTeeth(teeth)
	if len(teeth) == 0 {
		return nil, ErrNoTeethSelected
	}

	total := decimal.Zero
	for _, tooth := range teeth {
		price, err := PriceForTooth(variants, tooth)
		if err != nil {
			return nil, err
		}
		total = total.Add(price)
	}

	var amount, percent decimal.Decimal
	switch {
	case discount.Percent != nil:
		percent = *discount.Percent
		if percent.IsNegative() {
			percent = decimal.Zero
		}
		amount = total.Mul(percent).Div(hundred).Round(2)
	case discount.Amount != nil:
		amount = *discount.Amount
		if amount.IsNegative() {
			amount = decimal.Zero
		}
	}

	if amount.GreaterThan(total) {
		amount = total
	}
	if total.IsPositive() {
		percent = amount.Mul(hundred).Div(total).Round(2)
	} else {
		percent = decimal.Zero
	}

	return &Quote{
		ToothNumbers:    teeth,
		ToothDisplay:    FormatToothNumbers(teeth),
		TotalPrice:      total,
		Discount:        amount,
		DiscountPercent: percent,
		AmountDue:       total.Sub(amount),
	}, nil
}

func dedupeTeeth(teeth []int) []int {
	seen := make(map[int]bool, len(teeth))
	out := make([]int, 0, len(teeth))
	for _, t := range teeth {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
