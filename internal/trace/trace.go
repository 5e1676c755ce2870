// Package trace renders Step Records into the human-readable trace
// described in spec §6: for each step, the deduced literal(s), the
// rendered clue templates that justify each, and the Knowledge State
// diff. Clue templates use Go's "{{...}}" delimiters directly, so
// text/template (or html/template under --html) renders them without
// translation.
package trace

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"sort"
	"strings"
	texttemplate "text/template"

	"github.com/clues/demystify/internal/knowledge"
	"github.com/clues/demystify/internal/model"
	"github.com/clues/demystify/internal/scheduler"
)

// clueData is the template execution context: index[k] and params[...]
// placeholders in a clue's template resolve against these fields via
// Go templates' builtin "index" function, e.g. {{index .Index 0}}.
type clueData struct {
	Index  []int
	Params map[string]interface{}
}

// Renderer renders clue templates and Step Records against one puzzle.
type Renderer struct {
	puzzle *model.Puzzle
	html   bool
}

// New builds a Renderer. When html is true, clue templates are parsed
// with html/template and trace output is escaped HTML; otherwise plain
// text/template is used.
func New(puzzle *model.Puzzle, html bool) *Renderer {
	return &Renderer{puzzle: puzzle, html: html}
}

// RenderClue renders clue id's template against its index/params and
// prefixes the result with "{id} ", so ParseClueID can recover the id
// from the rendered string.
func (r *Renderer) RenderClue(id string) (string, error) {
	c, ok := r.puzzle.Clue(id)
	if !ok {
		return "", fmt.Errorf("trace: unknown clue %q", id)
	}
	data := clueData{Index: c.Index, Params: c.Params}

	var buf bytes.Buffer
	if r.html {
		t, err := htmltemplate.New(c.ID).Parse(c.Template)
		if err != nil {
			return "", fmt.Errorf("trace: parsing clue %s template: %w", c.ID, err)
		}
		if err := t.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("trace: rendering clue %s: %w", c.ID, err)
		}
	} else {
		t, err := texttemplate.New(c.ID).Parse(c.Template)
		if err != nil {
			return "", fmt.Errorf("trace: parsing clue %s template: %w", c.ID, err)
		}
		if err := t.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("trace: rendering clue %s: %w", c.ID, err)
		}
	}
	return fmt.Sprintf("{%s} %s", c.ID, buf.String()), nil
}

// ParseClueID recovers a clue id from a string RenderClue produced.
func ParseClueID(rendered string) (id string, ok bool) {
	if !strings.HasPrefix(rendered, "{") {
		return "", false
	}
	end := strings.Index(rendered, "}")
	if end < 0 {
		return "", false
	}
	return rendered[1:end], true
}

// RenderStep renders one Step Record: its deduced literals, the clues
// that refuted each, and the Knowledge State diff between before/after.
func (r *Renderer) RenderStep(rec scheduler.Record) (string, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Step %d:\n", rec.StepIndex)
	for _, m := range rec.Muses {
		fmt.Fprintf(&buf, "  %s = %s ruled out, via:\n", m.Literal.Variable, m.Literal.Value)
		for _, id := range m.Clues {
			rendered, err := r.RenderClue(id)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&buf, "    - %s\n", rendered)
		}
	}

	diff := knowledge.Diff(rec.KnowledgeBefore, rec.KnowledgeAfter)
	vars := make([]string, 0, len(diff))
	for v := range diff {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	for _, v := range vars {
		fmt.Fprintf(&buf, "  %s: removed %s\n", v, strings.Join(diff[v], ","))
	}
	return buf.String(), nil
}

// RenderTrace renders a full sequence of Step Records, per spec §6.
func (r *Renderer) RenderTrace(recs []scheduler.Record) (string, error) {
	var buf bytes.Buffer
	if r.html {
		buf.WriteString("<div class=\"trace\">\n")
	}
	for _, rec := range recs {
		s, err := r.RenderStep(rec)
		if err != nil {
			return "", err
		}
		if r.html {
			buf.WriteString("<pre class=\"step\">")
			htmltemplate.HTMLEscape(&buf, []byte(s))
			buf.WriteString("</pre>\n")
		} else {
			buf.WriteString(s)
			buf.WriteString("\n")
		}
	}
	if r.html {
		buf.WriteString("</div>\n")
	}
	return buf.String(), nil
}
