package media

import (
	"fmt"
	"os"
	"strings"
)

// Cookies are passed to yt-dlp. A cookies file wins over a browser profile.
type Cookies struct {
	File    string
	Browser string
}

func (c Cookies) Configured() bool {
	return c.File != "" || c.Browser != ""
}

func (c Cookies) args() []string {
	switch {
	case c.File != "":
		return []string{"--cookies", c.File}
	case c.Browser != "":
		return []string{"--cookies-from-browser", c.Browser}
	default:
		return nil
	}
}

// CheckCookiesFile reports a cookies file that yt-dlp cannot use for YouTube.
func CheckCookiesFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read cookies file: %w", err)
	}
	content := string(b)
	if !strings.Contains(content, "# HTTP Cookie File") && !strings.Contains(content, "# Netscape HTTP Cookie File") {
		return fmt.Errorf("cookies file %s is missing the Netscape header", path)
	}
	if !strings.Contains(content, ".youtube.com") {
		return fmt.Errorf("cookies file %s has no youtube.com cookies", path)
	}
	return nil
}
