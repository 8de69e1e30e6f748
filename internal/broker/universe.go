package broker

import "github.com/shopspring/decimal"

// DefaultUniverse returns the NSE large-cap symbols the paper broker
// quotes, with reference base prices. A live integration would replace
// this with the exchange's top-of-volume list.
func DefaultUniverse() map[string]decimal.Decimal {
	prices := map[string]string{
		"RELIANCE":   "2450.00",
		"TCS":        "3650.00",
		"HDFCBANK":   "1580.00",
		"INFY":       "1420.00",
		"ICICIBANK":  "985.00",
		"KOTAKBANK":  "1750.00",
		"HINDUNILVR": "2520.00",
		"SBIN":       "605.00",
		"BHARTIARTL": "905.00",
		"ITC":        "445.00",
		"ASIANPAINT": "3180.00",
		"MARUTI":     "10350.00",
		"BAJFINANCE": "7150.00",
		"HCLTECH":    "1240.00",
		"AXISBANK":   "1015.00",
		"LT":         "3050.00",
		"SUNPHARMA":  "1185.00",
		"TITAN":      "3320.00",
		"WIPRO":      "415.00",
		"TATAMOTORS": "650.00",
		"JSWSTEEL":   "790.00",
		"TATASTEEL":  "125.00",
		"HINDALCO":   "495.00",
		"ONGC":       "185.00",
		"NTPC":       "245.00",
	}

	universe := make(map[string]decimal.Decimal, len(prices))
	for sym, p := range prices {
		universe[sym] = decimal.RequireFromString(p)
	}
	return universe
}
