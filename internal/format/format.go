// Package format renders quote records through printf-style format
// strings. One specifier is '%', an optional '-' flag, an optional
// width, an optional '.'precision, then a single field letter:
//
//	c  current price        h  high of the day    C  previous close
//	d  change               l  low of the day     t  symbol
//	p  percent change       o  open of the day    %  literal '%'
//
// The '-' flag means RIGHT justify (inverted from printf). Precision is
// textual: digits after the decimal point are zero-padded or sliced off,
// never rounded. Width truncates or space-pads to an exact character
// count. Text that matches no specifier passes through verbatim.
package format

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"tickerfeed/internal/quote"
)

var specRE = regexp.MustCompile(`%(-)?(\d+)?(?:\.(\d+))?([cdphloCt%])`)

// Render expands every specifier in format against q.
func Render(q quote.Quote, format string) string {
	var b strings.Builder
	pos := 0
	for pos < len(format) {
		loc := specRE.FindStringSubmatchIndex(format[pos:])
		if loc == nil {
			b.WriteString(format[pos:])
			break
		}
		b.WriteString(format[pos : pos+loc[0]])
		b.WriteString(renderSpecifier(q, format[pos:], loc))
		pos += loc[1]
	}
	return b.String()
}

func renderSpecifier(q quote.Quote, s string, loc []int) string {
	group := func(i int) string {
		if loc[2*i] < 0 {
			return ""
		}
		return s[loc[2*i]:loc[2*i+1]]
	}
	justifyRight := group(1) == "-"
	widthStr := group(2)
	precStr := group(3)

	res := fieldValue(q, group(4))

	// Precision only touches values that carry a decimal point.
	if precStr != "" {
		if d := strings.IndexByte(res, '.'); d >= 0 {
			prec, _ := strconv.Atoi(precStr)
			needed := prec - len(res[d+1:])
			if needed > 0 {
				res += strings.Repeat("0", needed)
			} else {
				res = res[:d+1+prec]
			}
		}
	}

	if widthStr != "" {
		width, _ := strconv.Atoi(widthStr)
		if len(res) > width {
			// Best-effort fit: keep the leftmost width characters
			// even when that cuts meaningful digits.
			res = res[:width]
		} else if pad := width - len(res); pad > 0 {
			if justifyRight {
				res = strings.Repeat(" ", pad) + res
			} else {
				res += strings.Repeat(" ", pad)
			}
		}
	}
	return res
}

// fieldValue maps one field letter onto its textual value. The literal
// percent is its own branch, not a record field.
func fieldValue(q quote.Quote, kind string) string {
	switch kind {
	case "c":
		return num(q.Current)
	case "d":
		return num(q.Change)
	case "p":
		return num(q.PercentChange)
	case "h":
		return num(q.High)
	case "l":
		return num(q.Low)
	case "o":
		return num(q.Open)
	case "C":
		return num(q.PreviousClose)
	case "t":
		return q.Symbol
	case "%":
		return "%"
	}
	return ""
}

// num is the natural decimal text of a wire float: shortest round-trip
// form, no exponent notation. NaN and infinities have no decimal form,
// so they render as their float text instead.
func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).String()
}
