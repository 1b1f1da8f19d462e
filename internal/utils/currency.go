package utils

import "github.com/shopspring/decimal"

// 支持币种及最小单位精度（ISO 4217）
var currencyScale = map[string]int32{
	"CNY": 2,
	"HKD": 2,
	"MYR": 2,
	"SGD": 2,
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"JPY": 0,
}

func KnownCurrency(code string) bool {
	_, ok := currencyScale[code]
	return ok
}

func CurrencyScale(code string) int32 {
	if s, ok := currencyScale[code]; ok {
		return s
	}
	return 2
}

// AmountScaleValid 金额小数位不得超过币种最小单位精度
func AmountScaleValid(amount decimal.Decimal, currency string) bool {
	return amount.Exponent() >= -CurrencyScale(currency)
}
