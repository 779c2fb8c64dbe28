package agent

import (
	"bytes"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mark3labs/mcp-go/mcp"
)

// paramCompleter is a dynamic completer that does not append a trailing
// space to completions ending with "=", so the user can type the value
// immediately. readline's built-in PcItemDynamic always adds the space.
type paramCompleter struct {
	Callback func(string) []string
	Children []readline.PrefixCompleterInterface
}

// GetName returns an empty name since this is a dynamic completer.
func (p *paramCompleter) GetName() []rune {
	return nil
}

// GetChildren returns the child completers.
func (p *paramCompleter) GetChildren() []readline.PrefixCompleterInterface {
	return p.Children
}

// SetChildren sets the child completers.
func (p *paramCompleter) SetChildren(children []readline.PrefixCompleterInterface) {
	p.Children = children
}

// IsDynamic returns true since this is a dynamic completer.
func (p *paramCompleter) IsDynamic() bool {
	return true
}

// GetDynamicNames returns completions, without a trailing space for
// items ending with "=".
func (p *paramCompleter) GetDynamicNames(line []rune) [][]rune {
	var names [][]rune
	for _, name := range p.Callback(string(line)) {
		if strings.HasSuffix(name, "=") {
			names = append(names, []rune(name))
		} else {
			names = append(names, []rune(name+" "))
		}
	}
	return names
}

// Print implements the PrefixCompleterInterface.
func (p *paramCompleter) Print(prefix string, level int, buf *bytes.Buffer) {
	// Dynamic completers have no static names to print.
}

// Do implements the AutoCompleter interface.
func (p *paramCompleter) Do(line []rune, pos int) ([][]rune, int) {
	return completeNoSpace(p, line, pos, line)
}

// completeNoSpace walks the completer tree the way readline's own
// prefix completion does, but resolves dynamic names through
// GetDynamicNames so the no-space behavior is preserved at every level.
func completeNoSpace(p readline.PrefixCompleterInterface, line []rune, pos int, origLine []rune) ([][]rune, int) {
	trimmed := line[:pos]
	for len(trimmed) > 0 && trimmed[0] == ' ' {
		trimmed = trimmed[1:]
	}

	var newLine [][]rune
	var offset int
	var lineCompleter readline.PrefixCompleterInterface
	goNext := false

	for _, child := range p.GetChildren() {
		var childNames [][]rune

		if dynChild, ok := child.(interface {
			IsDynamic() bool
			GetDynamicNames([]rune) [][]rune
		}); ok && dynChild.IsDynamic() {
			childNames = dynChild.GetDynamicNames(origLine)
		} else {
			childNames = [][]rune{child.GetName()}
		}

		for _, childName := range childNames {
			if len(trimmed) >= len(childName) {
				if runesHavePrefix(trimmed, childName) {
					if len(trimmed) == len(childName) {
						newLine = append(newLine, []rune{' '})
					} else {
						newLine = append(newLine, childName)
					}
					offset = len(childName)
					lineCompleter = child
					goNext = true
				}
			} else {
				if runesHavePrefix(childName, trimmed) {
					newLine = append(newLine, childName[len(trimmed):])
					offset = len(trimmed)
					lineCompleter = child
				}
			}
		}
	}

	if len(newLine) != 1 {
		return newLine, offset
	}

	tmpLine := make([]rune, 0, len(trimmed))
	for i := offset; i < len(trimmed); i++ {
		if trimmed[i] == ' ' {
			continue
		}
		tmpLine = append(tmpLine, trimmed[i:]...)
		return completeNoSpace(lineCompleter, tmpLine, len(tmpLine), origLine)
	}

	if goNext {
		return completeNoSpace(lineCompleter, nil, 0, origLine)
	}
	return newLine, offset
}

// runesHavePrefix checks if s starts with prefix.
func runesHavePrefix(s, prefix []rune) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i, r := range prefix {
		if s[i] != r {
			return false
		}
	}
	return true
}

// createCompleter creates the tab completion tree from the registry and
// the cached tool list. Each tool name completes into its parameter
// names in key= form.
func (r *REPL) createCompleter() *readline.PrefixCompleter {
	toolCache := r.session.CachedTools()

	toolCompleter := make([]readline.PrefixCompleterInterface, len(toolCache))
	for i := range toolCache {
		// Capture the tool by taking the address of the slice element.
		tool := &toolCache[i]
		toolCompleter[i] = readline.PcItem(tool.Name,
			&paramCompleter{Callback: toolParamCompleter(tool)})
	}

	commandNames := r.registry.AllCompletions()
	commandCompleters := make([]readline.PrefixCompleterInterface, len(commandNames))
	for i, name := range commandNames {
		commandCompleters[i] = readline.PcItem(name)
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("help", commandCompleters...),
		readline.PcItem("?"),
		readline.PcItem("tools"),
		readline.PcItem("call", toolCompleter...),
		readline.PcItem("run", toolCompleter...),
		readline.PcItem("exec", toolCompleter...),
		readline.PcItem("auth"),
		readline.PcItem("login"),
		readline.PcItem("code"),
		readline.PcItem("status"),
		readline.PcItem("logout"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
	)
}

// toolParamCompleter returns a dynamic completion function for a tool's
// parameters, skipping parameters already present on the line.
func toolParamCompleter(tool *mcp.Tool) readline.DynamicCompleteFunc {
	return func(line string) []string {
		if tool == nil || len(tool.InputSchema.Properties) == 0 {
			return []string{}
		}

		var params []string
		for name := range tool.InputSchema.Properties {
			params = append(params, name)
		}
		sort.Strings(params)

		var completions []string
		for _, param := range params {
			if !strings.Contains(line, param+"=") {
				completions = append(completions, param+"=")
			}
		}

		return completions
	}
}

// filterInput filters input characters for readline.
func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}
