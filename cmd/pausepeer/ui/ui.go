// Package ui renders pausepeer's terminal output.
package ui

import (
	"fmt"
	"strconv"
	"strings"

	"pausesync/internal/journal"
	"pausesync/internal/node"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var (
	AccentStyle  = lipgloss.NewStyle().Foreground(purple)
	SuccessStyle = lipgloss.NewStyle().Foreground(green)
	ErrorStyle   = lipgloss.NewStyle().Foreground(red)
	WarnStyle    = lipgloss.NewStyle().Foreground(yellow)
	LabelStyle   = lipgloss.NewStyle().Foreground(dim)
)

func Accent(s string) string { return AccentStyle.Render(s) }

func Bool(v bool) string {
	if v {
		return SuccessStyle.Render("true")
	}
	return ErrorStyle.Render("false")
}

func SuccessMsg(format string, a ...any) string {
	return SuccessStyle.Render("✓") + " " + fmt.Sprintf(format, a...)
}

func WarnMsg(format string, a ...any) string {
	return WarnStyle.Render("!") + " " + fmt.Sprintf(format, a...)
}

func ErrorMsg(format string, a ...any) string {
	return ErrorStyle.Render("✗") + " " + fmt.Sprintf(format, a...)
}

func InfoMsg(format string, a ...any) string {
	return AccentStyle.Render("●") + " " + fmt.Sprintf(format, a...)
}

type Pair struct {
	key   string
	value string
}

func KV(key, value string) Pair { return Pair{key: key, value: value} }

// KeyValues renders aligned "key:  value" lines with a trailing newline.
func KeyValues(indent string, pairs ...Pair) string {
	maxLen := 0
	for _, p := range pairs {
		maxLen = max(maxLen, len(p.key))
	}
	var sb strings.Builder
	for _, p := range pairs {
		label := fmt.Sprintf("%-*s", maxLen+1, p.key+":")
		sb.WriteString(indent + LabelStyle.Render(label) + " " + p.value + "\n")
	}
	return sb.String()
}

func Table(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	oddStyle := cellStyle.Foreground(dim)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return cellStyle
			default:
				return oddStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}

// Status renders a node's status block.
func Status(st node.Status) string {
	authority := Accent("none")
	if st.HasAuthority {
		authority = st.Authority.String()
		if st.IsAuthority {
			authority += " " + Accent("(local)")
		}
	}
	pauser := "-"
	if st.PausingPeer != nil {
		pauser = st.PausingPeer.String()
	}
	present := make([]string, 0, len(st.Present))
	for _, p := range st.Present {
		present = append(present, p.String())
	}
	hostDiff := "-"
	if st.HasHostDifference {
		hostDiff = strconv.FormatFloat(st.HostDifference, 'f', 3, 64) + "s"
	}
	authorityTime := "-"
	if !st.AuthorityTime.IsZero() {
		authorityTime = st.AuthorityTime.Format("15:04:05.000")
	}
	presentText := "-"
	if len(present) > 0 {
		presentText = strings.Join(present, ", ")
	}

	return KeyValues("  ",
		KV("peer", st.Local.String()),
		KV("authority", authority),
		KV("present", presentText),
		KV("paused", Bool(st.Paused)),
		KV("paused by", pauser),
		KV("can pause", Bool(st.CanPause)),
		KV("permission", Bool(st.PlayersCanPause)),
		KV("phase", st.Phase.String()),
		KV("clock offset", strconv.FormatFloat(st.ClockOffset, 'f', 3, 64)+"s"),
		KV("host difference", hostDiff),
		KV("authority time", authorityTime),
	)
}

// History renders journal entries as a table.
func History(entries []journal.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		pauser := "-"
		if e.PausingPeer != nil {
			pauser = e.PausingPeer.String()
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.Seq, 10),
			e.At.Local().Format("2006-01-02 15:04:05.000"),
			e.Peer.String(),
			strconv.FormatBool(e.Paused),
			pauser,
			strconv.FormatFloat(e.ClockOffset, 'f', 3, 64),
			string(e.Source),
		})
	}
	return Table([]string{"SEQ", "AT", "PEER", "PAUSED", "BY", "OFFSET", "SOURCE"}, rows)
}
