package extract

import "strings"

// loginIndicators are phrases that mark a professional-network login wall
// served in place of profile content.
var loginIndicators = []string{
	"sign in",
	"join now",
	"authwall",
	"login_required",
	"please log in",
	"sign up to view",
}

// IsLoginWall reports whether fetched text is a login wall rather than
// profile content. Reader services sometimes return these with a 200.
func IsLoginWall(content string) bool {
	if len(strings.TrimSpace(content)) < 100 {
		return true
	}
	lower := strings.ToLower(content)
	for _, indicator := range loginIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
