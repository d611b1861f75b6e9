package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"voipcheck/internal/models"
)

const ruleWidth = 60

// Console prints probe progress and the run summary for humans. Styling is
// only applied when out is a colour terminal, so the literal tags survive
// redirection.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	markers map[string]lipgloss.Style
	pass    lipgloss.Style
	fail    lipgloss.Style
	title   lipgloss.Style
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	green := r.NewStyle().Foreground(lipgloss.Color("2"))
	red := r.NewStyle().Foreground(lipgloss.Color("1"))
	yellow := r.NewStyle().Foreground(lipgloss.Color("3"))
	cyan := r.NewStyle().Foreground(lipgloss.Color("6"))

	return &Console{
		out: out,
		markers: map[string]lipgloss.Style{
			"*": cyan,
			"+": green,
			">": cyan,
			"<": cyan,
			"!": yellow,
			"-": red,
		},
		pass:  green.Bold(true),
		fail:  red.Bold(true),
		title: r.NewStyle().Bold(true),
	}
}

// Step prints one progress line. An empty marker prints an indented detail.
func (c *Console) Step(marker, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if marker == "" {
		c.println("   " + text)
		return
	}
	tag := "[" + marker + "]"
	if style, ok := c.markers[marker]; ok {
		tag = style.Render(tag)
	}
	c.println(tag + " " + text)
}

// Blank prints an empty line.
func (c *Console) Blank() {
	c.println("")
}

// Banner prints a ruled heading.
func (c *Console) Banner(title string) {
	rule := strings.Repeat("=", ruleWidth)
	c.println(rule)
	c.println(c.title.Render(title))
	c.println(rule)
}

// Summary prints the per-channel verdicts and the closing line.
func (c *Console) Summary(run models.RunReport) {
	c.Blank()
	c.Banner("Test Summary")
	for _, res := range run.Results {
		c.println(fmt.Sprintf("%-21s%s", channelLabel(res.Channel)+":", c.Verdict(res.OK)))
	}
	c.Blank()
	if run.Passed() {
		c.println(c.pass.Render("[SUCCESS]") + " All tests passed! Server is ready.")
	} else {
		c.println(c.fail.Render("[WARNING]") + " Some tests failed. Check server logs.")
	}
}

// Verdict renders the [PASS] or [FAIL] tag.
func (c *Console) Verdict(ok bool) string {
	if ok {
		return c.pass.Render("[PASS]")
	}
	return c.fail.Render("[FAIL]")
}

func (c *Console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, line)
}

func channelLabel(channel string) string {
	switch channel {
	case models.ChannelControl:
		return "WebSocket (Control)"
	case models.ChannelVoice:
		return "UDP (Voice)"
	default:
		return channel
	}
}
