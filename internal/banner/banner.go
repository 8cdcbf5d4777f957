package banner

import (
	"pageswarm/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

const ascii = `
    ____                                                    
   / __ \____ _____ ____  ______      ______ __________ ___ 
  / /_/ / __ '/ __ '/ _ \/ ___/ | /| / / __ '/ ___/ __ '__ \
 / ____/ /_/ / /_/ /  __(__  )| |/ |/ / /_/ / /  / / / / / /
/_/    \__,_/\__, /\___/____/ |__/|__/\__,_/_/  /_/ /_/ /_/ 
            /____/                                          `

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	return "\n" + style.Render(ascii) + "\n"
}
