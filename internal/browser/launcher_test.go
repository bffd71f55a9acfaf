// internal/browser/launcher_test.go
package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/seatctl/internal/config"
)

func TestAllocatorFlags(t *testing.T) {
	t.Run("Headless launch", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{}, LaunchOptions{Headless: true}, "darwin")
		assert.Equal(t, true, flags["headless"])
		assert.Equal(t, true, flags["disable-gpu"])
		assert.Equal(t, false, flags["enable-automation"])
		assert.Equal(t, "AutomationControlled", flags["disable-blink-features"])
		assert.NotContains(t, flags, "no-sandbox")
	})

	t.Run("Visible launch keeps the GPU", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{}, LaunchOptions{Headless: false}, "darwin")
		assert.Equal(t, false, flags["headless"])
		assert.NotContains(t, flags, "disable-gpu")
	})

	t.Run("Custom args", func(t *testing.T) {
		cfg := config.BrowserConfig{Args: []string{"--lang=zh-CN", "mute-audio", "  --proxy-server=http://127.0.0.1:8080", "--"}}
		flags := allocatorFlags(cfg, LaunchOptions{}, "darwin")
		assert.Equal(t, "zh-CN", flags["lang"])
		assert.Equal(t, true, flags["mute-audio"])
		assert.Equal(t, "http://127.0.0.1:8080", flags["proxy-server"])
		assert.NotContains(t, flags, "")
	})

	t.Run("Linux container flags", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{IgnoreTLSErrors: true}, LaunchOptions{}, "linux")
		assert.Equal(t, true, flags["no-sandbox"])
		assert.Equal(t, true, flags["disable-dev-shm-usage"])
		assert.Equal(t, true, flags["disable-setuid-sandbox"])
		assert.Equal(t, true, flags["ignore-certificate-errors"])
	})

	t.Run("Options include profile and window size", func(t *testing.T) {
		base := buildAllocatorOptions(config.BrowserConfig{}, LaunchOptions{})
		withProfile := buildAllocatorOptions(config.BrowserConfig{WindowWidth: 800, WindowHeight: 600}, LaunchOptions{UserDataDir: "/tmp/p"})
		assert.Len(t, withProfile, len(base)+2)
	})
}
