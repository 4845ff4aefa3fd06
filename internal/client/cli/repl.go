package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// command is one REPL verb.
type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string) error
}

// runREPL reads lines from reader, dispatches the first word to cmds and
// prints errors to w. It returns on EOF, on "exit"/"quit" or when ctx is
// done.
func runREPL(ctx context.Context, cmds map[string]command, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(w, "lbuf (%s)> ", statusFn())

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		name, args := parts[0], parts[1:]

		switch name {
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		case "help":
			printHelp(cmds, w)
			continue
		}

		c, ok := cmds[name]
		if !ok {
			fmt.Fprintln(w, "Unknown command:", name)
			continue
		}
		if err := c.run(ctx, args); err != nil {
			if errors.Is(err, errUsage) {
				fmt.Fprintf(w, "Usage: %s %s\n", name, c.usage)
			} else {
				fmt.Fprintln(w, "error:", err)
			}
		}
	}
}

func printHelp(cmds map[string]command, w io.Writer) {
	names := make([]string, 0, len(cmds))
	for n := range cmds {
		names = append(names, n)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Available commands:")
	for _, n := range names {
		c := cmds[n]
		fmt.Fprintf(w, "  %-14s %-36s %s\n", n, c.usage, c.help)
	}
	fmt.Fprintf(w, "  %-14s %-36s %s\n", "exit", "", "leave the program")
}
