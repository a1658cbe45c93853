package session

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeVersion reduces a server version string such as "21.8.7.1" or
// "2.4.1-cnch" to major.minor.patch. Missing parts are zero.
func NormalizeVersion(v string) (string, error) {
	parts := strings.Split(strings.TrimSpace(v), ".")
	nums := [3]int{}
	for i := 0; i < len(nums) && i < len(parts); i++ {
		digits := leadingDigits(parts[i])
		if digits == "" {
			if i == 0 {
				return "", fmt.Errorf("invalid version %q", v)
			}
			break
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return "", fmt.Errorf("invalid version %q: %w", v, err)
		}
		nums[i] = n
		if len(digits) != len(parts[i]) {
			break
		}
	}
	return fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2]), nil
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

// CompareVersions compares dot-separated numeric versions part by part and
// returns -1, 0 or 1. Comparison stops at the end of the shorter version,
// so "21.0.1" and "21.0" compare equal.
func CompareVersions(a, b string) (int, error) {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")
	for i := 0; i < len(aParts) && i < len(bParts); i++ {
		x, err := strconv.Atoi(aParts[i])
		if err != nil {
			return 0, fmt.Errorf("version must consist of only numbers separated by '.': %q", a)
		}
		y, err := strconv.Atoi(bParts[i])
		if err != nil {
			return 0, fmt.Errorf("version must consist of only numbers separated by '.': %q", b)
		}
		if x != y {
			if x > y {
				return 1, nil
			}
			return -1, nil
		}
	}
	return 0, nil
}
