package capture

import (
	"fmt"
	"strings"
)

// cleanModelText strips markdown fences and blank lines from a model reply
func cleanModelText(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return strings.Join(lines, "\n"), nil
}
