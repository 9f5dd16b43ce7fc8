package console

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
)

func completer(ext string) *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands))
	for _, c := range commands {
		if c.name == "open" {
			items = append(items, readline.PcItem("open", readline.PcItemDynamic(func(line string) []string {
				return listDocuments(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "open")), ext)
			})))
			continue
		}
		items = append(items, readline.PcItem(c.name))
	}
	return readline.NewPrefixCompleter(items...)
}

// listDocuments returns directories and files with extension ext whose path
// starts with prefix.
func listDocuments(prefix, ext string) []string {
	base := prefix[:strings.LastIndex(prefix, string(filepath.Separator))+1]
	dir := base
	if dir == "" {
		dir = "."
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		name := base + e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if e.IsDir() {
			names = append(names, name+string(filepath.Separator))
			continue
		}
		if ext == "" || strings.EqualFold(filepath.Ext(name), ext) {
			names = append(names, name)
		}
	}
	return names
}
