package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joebot/greetbot/internal/config"
)

// --- existing-config selection model ---

type onboardChoice int

const (
	choiceUpgrade onboardChoice = iota
	choiceOverwrite
	choiceSkip
)

type choiceModel struct {
	title   string
	choices []string
	cursor  int
	chosen  bool
	choice  int
}

func (m choiceModel) Init() tea.Cmd { return nil }

func (m choiceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.choice = len(m.choices) - 1
			m.chosen = true
			return m, tea.Quit
		case tea.KeyUp, tea.KeyShiftTab:
			if m.cursor > 0 {
				m.cursor--
			}
		case tea.KeyDown, tea.KeyTab:
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}
		case tea.KeyEnter:
			m.choice = m.cursor
			m.chosen = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m choiceModel) View() string {
	if m.chosen {
		return ""
	}

	s := "\n  " + m.title + "\n\n"
	for i, choice := range m.choices {
		cursor := "  "
		if i == m.cursor {
			cursor = CursorStyle.Render("❯ ")
		}
		s += "  " + cursor + choice + "\n"
	}
	s += "\n" + DimStyle.Render("  ↑/↓ navigate · enter select · esc cancel") + "\n"
	return s
}

// --- credential wizard model ---

type wizardModel struct {
	labels  []string
	inputs  []textinput.Model
	step    int
	done    bool
	aborted bool
}

func newWizard(platform string) wizardModel {
	var labels []string
	var secret []bool
	switch platform {
	case "discord":
		labels = []string{"Discord bot token", "Redis address", "Admin listen address"}
		secret = []bool{true, false, false}
	default:
		labels = []string{"Bluesky handle", "Bluesky app password", "Redis address", "Admin listen address"}
		secret = []bool{false, true, false, false}
	}

	defaults := config.DefaultConfig()
	inputs := make([]textinput.Model, len(labels))
	for i, label := range labels {
		in := textinput.New()
		in.Prompt = "  "
		in.CharLimit = 256
		if secret[i] {
			in.EchoMode = textinput.EchoPassword
		}
		switch label {
		case "Redis address":
			in.Placeholder = defaults.Store.Redis.Addr
		case "Admin listen address":
			in.Placeholder = defaults.Admin.Listen
		case "Bluesky handle":
			in.Placeholder = "yourname.bsky.social"
		}
		inputs[i] = in
	}
	inputs[0].Focus()

	return wizardModel{labels: labels, inputs: inputs}
}

func (m wizardModel) Init() tea.Cmd { return textinput.Blink }

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.aborted = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.step == len(m.inputs)-1 {
				m.done = true
				return m, tea.Quit
			}
			m.inputs[m.step].Blur()
			m.step++
			m.inputs[m.step].Focus()
			return m, textinput.Blink
		}
	}

	var cmd tea.Cmd
	m.inputs[m.step], cmd = m.inputs[m.step].Update(msg)
	return m, cmd
}

func (m wizardModel) View() string {
	if m.done || m.aborted {
		return ""
	}

	s := "\n"
	for i := 0; i <= m.step; i++ {
		s += "  " + BoldStyle.Render(m.labels[i]) + "\n"
		s += m.inputs[i].View() + "\n\n"
	}
	s += DimStyle.Render("  enter next · esc cancel") + "\n"
	return s
}

// value returns the input at i, falling back to its placeholder.
func (m wizardModel) value(i int) string {
	v := m.inputs[i].Value()
	if v == "" {
		return m.inputs[i].Placeholder
	}
	return v
}

// RunOnboard runs the onboard wizard: platform choice, credentials, and
// config file creation. Dispatch settings themselves are configured
// later through the admin API's setup flow.
func RunOnboard() {
	cfgPath := config.ConfigPath()

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("  %s greetbot Onboard", Logo)))

	if _, err := os.Stat(cfgPath); err == nil {
		m := choiceModel{
			title: fmt.Sprintf("Config already exists at %s", DimStyle.Render(cfgPath)),
			choices: []string{
				"Upgrade — add new fields, keep existing values",
				"Overwrite — run the wizard again",
				"Skip — do not modify config",
			},
		}
		final, err := tea.NewProgram(m).Run()
		if err != nil {
			fail(err)
		}
		fm := final.(choiceModel)

		fmt.Println()
		switch onboardChoice(fm.choice) {
		case choiceUpgrade:
			if _, err := config.Upgrade(); err != nil {
				fail(err)
			}
			fmt.Println("  " + OkStyle.Render("✓") + " Upgraded config")
			return
		case choiceOverwrite:
			// Fall through to the wizard below.
		default:
			fmt.Println("  " + DimStyle.Render("Config unchanged"))
			return
		}
	}

	platform := pickPlatform()
	if platform == "" {
		fmt.Println("  " + DimStyle.Render("Cancelled"))
		return
	}

	final, err := tea.NewProgram(newWizard(platform)).Run()
	if err != nil {
		fail(err)
	}
	wm := final.(wizardModel)
	if wm.aborted {
		fmt.Println("  " + DimStyle.Render("Cancelled"))
		return
	}

	cfg := config.DefaultConfig()
	cfg.Platform = platform
	switch platform {
	case "discord":
		cfg.Discord.Token = wm.value(0)
		cfg.Store.Redis.Addr = wm.value(1)
		cfg.Admin.Listen = wm.value(2)
	default:
		cfg.Bluesky.Identifier = wm.value(0)
		cfg.Bluesky.AppPassword = wm.value(1)
		cfg.Store.Redis.Addr = wm.value(2)
		cfg.Admin.Listen = wm.value(3)
	}
	cfg.Admin.SessionSecret = newSecret()

	if err := config.Save(cfg); err != nil {
		fail(err)
	}

	fmt.Println()
	fmt.Println("  " + OkStyle.Render("✓") + " Created config at " + DimStyle.Render(cfgPath))
	fmt.Println()
	fmt.Println(OkStyle.Render("  greetbot is ready!"))
	fmt.Println()
	fmt.Println(DimStyle.Render("  Next steps:"))
	fmt.Println(DimStyle.Render("  1. Start the bot: greetbot serve"))
	fmt.Println(DimStyle.Render("  2. Complete setup: POST http://" + cfg.Admin.Listen + "/api/setup"))
	fmt.Println()
}

func pickPlatform() string {
	m := choiceModel{
		title:   "Which platform does the bot account live on?",
		choices: []string{"Bluesky", "Discord", "Cancel"},
	}
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		fail(err)
	}
	switch final.(choiceModel).choice {
	case 0:
		return "bluesky"
	case 1:
		return "discord"
	}
	return ""
}

func newSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		fail(fmt.Errorf("generate session secret: %w", err))
	}
	return hex.EncodeToString(b)
}

func fail(err error) {
	fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
	os.Exit(1)
}
