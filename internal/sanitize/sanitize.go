// Package sanitize cleans user-supplied rich text before it is stored.
package sanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func commentPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.UGCPolicy()
		policy.RequireNoFollowOnLinks(true)
	})
	return policy
}

// Comment returns content with scripts, event handlers and unsafe URLs removed.
// Comment bodies are HTML fragments; plain text passes through apart from
// HTML escaping of markup-significant characters.
func Comment(content string) string {
	return strings.TrimSpace(commentPolicy().Sanitize(content))
}
