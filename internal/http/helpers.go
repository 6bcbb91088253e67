package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"smartasset/internal/core"
	"smartasset/internal/log"
	"smartasset/internal/middleware/trace"
)

// parseID reads a positive integer path value.
func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// sanitizeInput removes control characters except tab and newlines and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// barWidth scales v against maxV to a percentage, keeping tiny non-zero
// values visible.
func barWidth(v, maxV decimal.Decimal) int {
	if !maxV.IsPositive() || !v.IsPositive() {
		return 0
	}
	w := int(v.Mul(decimal.NewFromInt(100)).Div(maxV).Round(0).IntPart())
	switch {
	case w < 2:
		return 2
	case w > 100:
		return 100
	}
	return w
}

var monthNames = [...]string{"", "January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December"}

func monthName(m int) string {
	if m < 1 || m > 12 {
		return "All months"
	}
	return monthNames[m]
}

func monthShort(m int) string {
	return monthName(m)[:3]
}

// moneyOf formats a decimal for display.
func moneyOf(d decimal.Decimal) string {
	return core.FormatAmount(d)
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}

// storeFailed logs err and answers 500, leaving whatever state the page has untouched.
func (s *Server) storeFailed(w http.ResponseWriter, r *http.Request, op, msg string, err error) {
	s.structLogger.LogError(r.Context(), msg, err, log.ErrorTypeDatabase, op,
		log.NewFields().WithRequestID(requestID(r)))
	InternalServerError(msg).Write(w)
}

// warningSummary joins coercion warnings for a notification.
func warningSummary(warns []core.Warning) string {
	const maxShown = 5
	parts := make([]string, 0, maxShown+1)
	for i, w := range warns {
		if i == maxShown {
			parts = append(parts, fmt.Sprintf("and %d more", len(warns)-maxShown))
			break
		}
		parts = append(parts, w.String())
	}
	return strings.Join(parts, "; ")
}
