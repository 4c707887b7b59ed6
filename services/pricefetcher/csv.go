package pricefetcher

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// closeFallbackIndex is the position of Close in the sd2t2ohlcv column layout
const closeFallbackIndex = 6

var (
	ErrEmptyBody    = errors.New("empty quote body")
	ErrNoDataRow    = errors.New("quote body has no data row")
	ErrNoClose      = errors.New("close value missing")
	ErrInvalidPrice = errors.New("close value is not a number")
)

// QuerySymbol converts a ticker to the quote source's symbol form.
// A symbol that already contains a dot is treated as fully qualified,
// anything else gets the US market suffix.
func QuerySymbol(ticker string) string {
	sym := strings.ToLower(strings.TrimSpace(ticker))
	if strings.Contains(sym, ".") {
		return sym
	}
	return sym + ".us"
}

// ParseClose extracts the close price from a header + data row CSV body.
func ParseClose(body string) (float64, error) {
	if strings.TrimSpace(body) == "" {
		return 0, ErrEmptyBody
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	var lines []string
	for scanner.Scan() && len(lines) < 2 {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read quote body: %w", err)
	}
	if len(lines) < 2 {
		return 0, ErrNoDataRow
	}

	cols := strings.Split(lines[0], ",")
	vals := trimTrailingEmpty(strings.Split(lines[1], ","))

	closeIdx := -1
	for i, col := range cols {
		if strings.EqualFold(strings.TrimSpace(col), "close") {
			closeIdx = i
			break
		}
	}
	if closeIdx == -1 {
		closeIdx = min(closeFallbackIndex, len(vals)-1)
	}
	if closeIdx < 0 || closeIdx >= len(vals) {
		return 0, ErrNoClose
	}

	closeStr := strings.TrimSpace(vals[closeIdx])
	if closeStr == "" || strings.EqualFold(closeStr, "N/D") {
		return 0, fmt.Errorf("%w: %q", ErrNoClose, closeStr)
	}
	if len(closeStr) >= 2 && strings.HasPrefix(closeStr, `"`) && strings.HasSuffix(closeStr, `"`) {
		closeStr = closeStr[1 : len(closeStr)-1]
	}

	price, err := decimal.NewFromString(closeStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, closeStr)
	}
	return price.InexactFloat64(), nil
}

// trimTrailingEmpty drops empty trailing fields so a row ending in a comma
// still resolves the positional fallback to its last value.
func trimTrailingEmpty(fields []string) []string {
	n := len(fields)
	for n > 0 && fields[n-1] == "" {
		n--
	}
	return fields[:n]
}
