package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the startup banner to stderr.
func PrintBanner(config *Config) {
	serviceURL := fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)

	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 64
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	art := []string{
		`  .d8888b.  888      .d88888b.   .d8888b.  8888888888 88888888888`,
		` d88P  Y88b 888     d88P" "Y88b d88P  Y88b 888            888`,
		` 888    888 888     888     888 Y88b.      888            888`,
		` 888        888     888     888  "Y888b.   8888888        888`,
		` 888        888     888     888     "Y88b. 888            888`,
		` 888    888 888     888     888       "888 888            888`,
		` Y88b  d88P 888     Y88b. .d88P Y88b  d88P 888            888`,
		`  "Y8888P"  88888888 "Y88888P"   "Y8888P"  8888888888     888`,
	}

	fmt.Fprintf(os.Stderr, "\n%s\n\n", hr)
	for _, line := range art {
		fmt.Fprintf(os.Stderr, "%s%s%s\n", textColor, line, banner.ColorReset)
	}
	fmt.Fprintf(os.Stderr, "\n%s  Closet Auth Session Agent%s\n\n%s\n\n", textColor, banner.ColorReset, hr)

	kvPad := 14
	kvLines := [][2]string{
		{"Version", GetVersion()},
		{"Build", GetBuild()},
		{"Commit", GetGitCommit()},
		{"Environment", config.Environment},
		{"Service URL", serviceURL},
		{"Backend", config.API.BaseURL},
		{"Data Path", config.Storage.Path},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(os.Stderr, "%s  %-*s %s%s\n", textColor, kvPad, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(os.Stderr, "\n")
}
