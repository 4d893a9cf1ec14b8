package billing

import (
	"fmt"
	"strconv"
	"strings"
)

const numberPrefix = "FAC-"

// NextNumber follows last in the FAC-NNNNNN sequence. An empty last starts it at FAC-000001.
func NextNumber(last string) (string, error) {
	if last == "" {
		return format(1), nil
	}

	suffix, ok := strings.CutPrefix(last, numberPrefix)
	if !ok {
		return "", fmt.Errorf("invoice number %q has no %s prefix", last, numberPrefix)
	}

	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse invoice number %q: %w", last, err)
	}

	return format(n + 1), nil
}

func format(n int64) string {
	return fmt.Sprintf("%s%06d", numberPrefix, n)
}
