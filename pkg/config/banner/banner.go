// Package banner prints the startup summary a human operator watches for
// when bringing a node up.
package banner

import (
	"fmt"

	"github.com/farcasterxyz/linkstore/pkg/config"
)

const art = `
 _     _       _    ____  _
| |   (_)_ __ | | _/ ___|| |_ ___  _ __ ___
| |   | | '_ \| |/ /\___ \| __/ _ \| '__/ _ \
| |___| | | | |   <  ___) | || (_) | | |  __/
|_____|_|_| |_|_|\_\|____/ \__\___/|_|  \___|
`

// Print prints the startup banner and a summary of the effective
// configuration a node is about to run with.
func Print(cfg *config.Config, version string) {
	fmt.Print(art)
	fmt.Println("== Config =====================================================")
	fmt.Printf("DB Path:     %s\n", cfg.Storage.DBPath)
	fmt.Printf("Cache Size:  %s\n", cfg.Storage.CacheSize)
	if version != "" {
		fmt.Printf("Version:     %s\n", version)
	}

	fmt.Println("\n== Link store ==================================================")
	fmt.Printf("Prune limit:    %d messages/fid\n", cfg.Link.PruneSizeLimit)
	fmt.Printf("Page size max:  %d\n", cfg.Link.PageSizeMax)

	if cfg.Prune.Enabled {
		fmt.Printf("Prune sweep:    enabled (cron=%s)\n", cfg.Prune.Cron)
	} else {
		fmt.Println("Prune sweep:    disabled")
	}

	if cfg.RateLimit.RPS > 0 {
		fmt.Printf("Rate limit:     %.1f/s burst %d per fid\n", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	} else {
		fmt.Println("Rate limit:     disabled")
	}

	fmt.Printf("Log level:      %s\n", cfg.Logging.Level)
	if cfg.Logging.AuditLogPath != "" {
		fmt.Printf("Audit log:      %s\n", cfg.Logging.AuditLogPath)
	}
	fmt.Println()
}
