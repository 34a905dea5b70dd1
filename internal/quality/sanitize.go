package quality

import "strings"

// SanitizeDashes collapses every em/en/figure dash variant to a plain
// hyphen. Runs on each body-producing stage's output before persistence,
// so the dash detector in ScanBanned only ever fires on text that skipped
// sanitation.
func SanitizeDashes(body string) string {
	return strings.TrimSpace(dashVariants.ReplaceAllString(body, "-"))
}
