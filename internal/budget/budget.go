package budget

import (
    "math"
    "unicode/utf8"
)

// charsPerToken is the average group text density used for estimates.
const charsPerToken = 4.0

// EstimateTokens returns the approximate token count of a group body,
// counting characters rather than bytes. Non-empty text is at least one
// token.
func EstimateTokens(s string) int {
    n := utf8.RuneCountInString(s)
    if n == 0 {
        return 0
    }
    return int(math.Ceil(float64(n) / charsPerToken))
}

// HeadroomTokens returns the safety margin subtracted from a token window:
// the larger of 5% of the window or 512 tokens, never more than the window.
func HeadroomTokens(window int) int {
    if window <= 0 {
        return 0
    }
    dyn := int(math.Ceil(float64(window) * 0.05))
    if dyn < 512 {
        dyn = 512
    }
    if dyn > window {
        return window
    }
    return dyn
}

// Remaining returns how many tokens of window are left after tokens and the
// headroom. The result is never negative. A window of zero means unlimited
// and always returns 0.
func Remaining(window int, tokens int) int {
    if window <= 0 {
        return 0
    }
    rem := window - HeadroomTokens(window) - tokens
    if rem < 0 {
        return 0
    }
    return rem
}

// Fits reports whether tokens fit into window once headroom is reserved.
// A window of zero or less disables the check.
func Fits(window int, tokens int) bool {
    if window <= 0 {
        return true
    }
    return tokens <= window-HeadroomTokens(window)
}
