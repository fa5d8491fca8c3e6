package cart

import (
	"fmt"
	"strconv"
	"strings"
)

// ItemKey derives the stable identifier for a (product, size) pair. Items that
// differ only by size get distinct keys; absence of size and empty size are
// the same key.
func ItemKey(productID int64, size string) string {
	if size == "" {
		return strconv.FormatInt(productID, 10)
	}
	return fmt.Sprintf("%d-%s", productID, size)
}

// EnsureItemKey trusts a non-blank externally supplied key and recomputes
// otherwise. Loaded records with missing identity are repaired here instead
// of being rejected.
func EnsureItemKey(key string, productID int64, size string) string {
	if strings.TrimSpace(key) != "" {
		return key
	}
	return ItemKey(productID, size)
}
