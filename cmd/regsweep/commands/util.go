package commands

import (
	"strconv"
	"strings"
)

// joinTags renders a tag list for a table cell.
func joinTags(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	return strings.Join(tags, ", ")
}

// formatVersionID renders a ledger version id for a table cell.
func formatVersionID(id int64) string {
	return strconv.FormatInt(id, 10)
}
