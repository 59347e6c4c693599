// Package repoctx loads the optional business context file that enriches
// review prompts. The file is markdown with conventional section headings;
// a missing or empty file degrades to no extra context, never an error.
package repoctx

import (
	"os"
	"strings"
)

// DefaultPath is the conventional location of the context file.
const DefaultPath = ".mrpilot/context.md"

// Context holds the recognized sections of the business context file.
// Unrecognized sections are preserved in Extra so nothing the team wrote is
// silently dropped from review prompts.
type Context struct {
	Description  string
	Architecture string
	Standards    string
	Terms        string
	Security     string
	Performance  string
	CustomRules  string
	Extra        string
}

// sectionKeys maps heading keywords to Context fields. Matching is a
// case-insensitive substring test on the heading line.
var sectionKeys = []struct {
	keyword string
	assign  func(*Context, string)
}{
	{"description", func(c *Context, s string) { c.Description = s }},
	{"architecture", func(c *Context, s string) { c.Architecture = s }},
	{"standard", func(c *Context, s string) { c.Standards = s }},
	{"term", func(c *Context, s string) { c.Terms = s }},
	{"glossary", func(c *Context, s string) { c.Terms = s }},
	{"security", func(c *Context, s string) { c.Security = s }},
	{"performance", func(c *Context, s string) { c.Performance = s }},
	{"rule", func(c *Context, s string) { c.CustomRules = s }},
}

// Load reads and parses the context file at path. A missing or unreadable
// file yields an empty Context.
func Load(path string) Context {
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Context{}
	}
	return Parse(string(data))
}

// Parse splits markdown text into named sections by heading.
func Parse(text string) Context {
	var ctx Context
	var heading string
	var body strings.Builder

	flush := func() {
		content := strings.TrimSpace(body.String())
		body.Reset()
		if content == "" {
			return
		}
		lower := strings.ToLower(heading)
		for _, s := range sectionKeys {
			if strings.Contains(lower, s.keyword) {
				s.assign(&ctx, content)
				return
			}
		}
		if ctx.Extra != "" {
			ctx.Extra += "\n\n"
		}
		ctx.Extra += content
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "#") {
			flush()
			heading = strings.TrimLeft(line, "# ")
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return ctx
}

// Render produces the free text injected into review prompts. Empty
// sections are omitted.
func (c Context) Render() string {
	var parts []string
	add := func(title, content string) {
		if content != "" {
			parts = append(parts, title+":\n"+content)
		}
	}
	add("Project description", c.Description)
	add("Architecture", c.Architecture)
	add("Coding standards", c.Standards)
	add("Domain terms", c.Terms)
	add("Security requirements", c.Security)
	add("Performance requirements", c.Performance)
	add("Custom review rules", c.CustomRules)
	add("Additional context", c.Extra)
	return strings.Join(parts, "\n\n")
}

// IsEmpty reports whether no context was found.
func (c Context) IsEmpty() bool {
	return c.Render() == ""
}
