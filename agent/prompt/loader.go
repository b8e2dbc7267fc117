package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
)

var (
	//go:embed template/standing.txt
	standingRaw string

	//go:embed template/narrate_booking.txt
	narrateBookingRaw string

	//go:embed template/narrate_search.txt
	narrateSearchRaw string

	//go:embed template/narrate_generic.txt
	narrateGenericRaw string

	//go:embed template/correction.txt
	correctionRaw string

	standingTmpl   = template.Must(template.New("standing").Parse(strings.TrimSpace(standingRaw)))
	correctionTmpl = template.Must(template.New("correction").Parse(strings.TrimSpace(correctionRaw)))
)

// Narration selects the instruction appended before the narration call.
type Narration int

const (
	NarrateGeneric Narration = iota
	NarrateBooking
	NarrateSearch
)

// ToolLine is one catalogue entry as shown in the standing instruction.
type ToolLine struct {
	Name string
	Desc string
	Args string
}

// PromptSet holds loaded prompt content.
type PromptSet struct {
	NarrateBooking string
	NarrateSearch  string
	NarrateGeneric string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		NarrateBooking: strings.TrimSpace(narrateBookingRaw),
		NarrateSearch:  strings.TrimSpace(narrateSearchRaw),
		NarrateGeneric: strings.TrimSpace(narrateGenericRaw),
	}
}

// Validate reports the first empty prompt.
func (p PromptSet) Validate() error {
	for name, v := range map[string]string{
		"narrate_booking": p.NarrateBooking,
		"narrate_search":  p.NarrateSearch,
		"narrate_generic": p.NarrateGeneric,
	} {
		if v == "" {
			return fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
		}
	}
	return nil
}

func (p PromptSet) Narration(n Narration) string {
	switch n {
	case NarrateBooking:
		return p.NarrateBooking
	case NarrateSearch:
		return p.NarrateSearch
	default:
		return p.NarrateGeneric
	}
}

// Standing renders the first message of every session.
func Standing(now time.Time, tools []ToolLine) (string, error) {
	var b strings.Builder
	err := standingTmpl.Execute(&b, map[string]any{
		"Today":   now.Format("2006-01-02"),
		"Weekday": now.Weekday().String(),
		"Tools":   tools,
	})
	if err != nil {
		return "", fmt.Errorf("render standing prompt: %w", err)
	}
	return b.String(), nil
}

func Correction(reason string) string {
	var b strings.Builder
	if err := correctionTmpl.Execute(&b, map[string]string{"Reason": reason}); err != nil {
		return "Answer again in plain text using only the tool results above."
	}
	return b.String()
}
