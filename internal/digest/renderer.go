package digest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Renderer serializes digest input.
type Renderer interface {
	Render(in *Input) ([]byte, error)
}

// NewRenderer returns the renderer for format ("markdown" or "json").
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case "", "markdown", "md":
		return &MarkdownRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown digest format %q", format)
}

// JSONRenderer renders digest input as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(in *Input) ([]byte, error) {
	out, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// MarkdownRenderer renders the digest written to digest.md.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(in *Input) ([]byte, error) {
	return []byte(Generate(in)), nil
}

// Generate renders in as Markdown. The output is free-form; users may edit
// digest.md afterwards.
func Generate(in *Input) string {
	var sb strings.Builder
	s := in.Session

	sb.WriteString("# Session digest\n\n")
	if s.Title != "" {
		fmt.Fprintf(&sb, "_%s_\n\n", s.Title)
	}
	fmt.Fprintf(&sb, "- **ID:** %s\n", s.ID)
	fmt.Fprintf(&sb, "- **Started:** %s\n", s.StartTime)
	fmt.Fprintf(&sb, "- **Status:** %s\n", s.Status)
	if s.DurationMS != nil {
		fmt.Fprintf(&sb, "- **Duration:** %s\n", FormatOffset(*s.DurationMS))
	}
	if s.EndTime != "" {
		fmt.Fprintf(&sb, "- **Ended:** %s\n", s.EndTime)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "**Markers:** %d\n\n", len(in.Markers))

	if len(in.Markers) > 0 {
		sb.WriteString("## Notable moments\n\n")
		for _, m := range in.Markers {
			fmt.Fprintf(&sb, "- **%s** — %s\n", FormatOffset(m.OffsetMS), markerLabel(m.Label, m.Tags))
		}
		sb.WriteString("\n")
	}

	if len(in.VoiceNotes) > 0 {
		sb.WriteString("## Voice notes\n\n")
		for _, v := range in.VoiceNotes {
			text := v.TranscriptText
			if text == "" {
				text = "_untranscribed_"
			}
			fmt.Fprintf(&sb, "- **%s** (%s) %s\n", FormatOffset(v.OffsetMS), FormatOffset(v.DurationMS), text)
		}
		sb.WriteString("\n")
	}

	if len(in.Transcript) > 0 {
		sb.WriteString("## Transcript\n\n")
		for _, seg := range in.Transcript {
			fmt.Fprintf(&sb, "- **%s** %s\n", FormatOffset(seg.OffsetMS), seg.Text)
		}
		sb.WriteString("\n")
	}

	if len(in.Actions) > 0 {
		sb.WriteString("## Recent actions\n\n")
		sb.WriteString("| Action | Status | Created |\n")
		sb.WriteString("|--------|--------|---------|\n")
		for _, a := range in.Actions {
			status := string(a.Status)
			if a.Error != "" {
				status += ": " + a.Error
			}
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", a.Action, status, a.CreatedAt)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func markerLabel(label string, tags []string) string {
	if label != "" {
		return label
	}
	if len(tags) > 0 {
		return strings.Join(tags, ", ")
	}
	return "marker"
}

// FormatOffset renders milliseconds as m:ss.
func FormatOffset(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
