package tickers

import "strings"

// quoteSuffixes is checked in order; the first matching suffix is stripped.
var quoteSuffixes = []string{"USDT", "BUSD", "USDC", "BTC", "ETH", "BNB", "USD", "EUR"}

// NormalizeSymbol splits an exchange pair into base and quote. Delimited
// forms (BTC-USDT, BTC_USDT, BTC/USDT) and concatenated forms (BTCUSDT) are
// both handled. The base must be at least 2 characters or the pair is
// rejected.
func NormalizeSymbol(pair string) (base, quote string, ok bool) {
	p := strings.ToUpper(strings.TrimSpace(pair))
	if p == "" {
		return "", "", false
	}

	for _, sep := range []string{"-", "_", "/"} {
		if i := strings.Index(p, sep); i > 0 {
			base, quote = p[:i], p[i+len(sep):]
			if len(base) >= 2 && isKnownQuote(quote) {
				return base, quote, true
			}
			return "", "", false
		}
	}

	for _, q := range quoteSuffixes {
		if strings.HasSuffix(p, q) && len(p) > len(q) {
			base = p[:len(p)-len(q)]
			if len(base) >= 2 {
				return base, q, true
			}
			return "", "", false
		}
	}
	return "", "", false
}

func isKnownQuote(q string) bool {
	for _, s := range quoteSuffixes {
		if q == s {
			return true
		}
	}
	return false
}

// IsUSDQuote reports whether the quote is a USD stable unit, meaning the
// quoted volume can be read directly as USD.
func IsUSDQuote(quote string) bool {
	switch quote {
	case "USDT", "BUSD", "USDC", "USD":
		return true
	}
	return false
}
