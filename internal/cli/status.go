package cli

import (
	"fmt"
	"os"

	"github.com/joebot/greetbot/internal/config"
	"github.com/joebot/greetbot/internal/settings"
)

// RunStatus displays the process configuration and the stored operator
// settings with styled output.
func RunStatus(cfg *config.Config, storeOK bool, st settings.Settings) {
	cfgPath := config.ConfigPath()

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("  %s greetbot Status", Logo)))
	fmt.Println()

	fmt.Printf("  %-12s %s  %s\n", "Config", StatusBadge(fileExists(cfgPath)), DimStyle.Render(cfgPath))
	fmt.Printf("  %-12s %s\n", "Platform", cfg.Platform)
	fmt.Printf("  %-12s %s  %s\n", "Store", StatusBadge(storeOK), DimStyle.Render(storeDesc(cfg)))
	fmt.Printf("  %-12s %s\n", "Admin", DimStyle.Render("http://"+cfg.Admin.Listen))
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Dispatch"))
	fmt.Printf("    %s  Setup complete\n", StatusBadge(st.SetupComplete))
	fmt.Printf("    %s  Enabled\n", StatusBadge(st.Enabled))
	fmt.Printf("    %-18s %ds\n", "Delay", st.DelaySeconds)
	if st.PerCycleSendCap > 0 {
		fmt.Printf("    %-18s %d\n", "Per-cycle cap", st.PerCycleSendCap)
	} else {
		fmt.Printf("    %-18s %s\n", "Per-cycle cap", DimStyle.Render("none"))
	}
	fmt.Printf("    %-18s %s\n", "Reply", DimStyle.Render(preview(st.ReplyText, 60)))
	fmt.Println()
}

func storeDesc(cfg *config.Config) string {
	if cfg.Store.Backend == "redis" {
		return "redis " + cfg.Store.Redis.Addr
	}
	return cfg.Store.Backend
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
