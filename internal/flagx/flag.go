// Package flagx lets several flag sets share one command line. Each set
// parses only the flags it defines and ignores everything else, so the
// config file flag and the settings flags can be read independently.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// Filter keeps the arguments that belong to the flags in names ("-a",
// "--config"). A value is taken from "-f=v", or from the next argument when
// that one does not start with "-".
func Filter(args []string, names map[string]bool) []string {
	out := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if names[name] {
				out = append(out, arg)
			}
			continue
		}

		if !names[arg] {
			continue
		}
		out = append(out, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}

	return out
}

// ParseKnown parses the arguments of args that fs defines, in both the
// single and the double dash form.
func ParseKnown(fs *flag.FlagSet, args []string) error {
	names := map[string]bool{}
	fs.VisitAll(func(f *flag.Flag) {
		names["-"+f.Name] = true
		names["--"+f.Name] = true
	})
	return fs.Parse(Filter(args, names))
}

// ConfigPath returns the JSON config file named by -c or -config, or "".
// The last occurrence wins.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = ParseKnown(fs, args)

	return path
}
