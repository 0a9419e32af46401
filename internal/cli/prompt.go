package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/reine-ishyanami/mirrors/internal/manager"
	"golang.org/x/term"
)

// selectFromList prints a numbered menu and reads a 1-based choice.
// An empty answer picks the first item.
func selectFromList(reader *bufio.Reader, w io.Writer, prompt string, items []string) (int, error) {
	fmt.Fprintf(w, "\n%s\n", prompt)
	for i, item := range items {
		fmt.Fprintf(w, "  %d) %s\n", i+1, item)
	}
	fmt.Fprintf(w, "Enter number [1-%d] (default 1): ", len(items))

	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return 0, fmt.Errorf("reading selection: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, nil
	}

	num, err := strconv.Atoi(line)
	if err != nil || num < 1 || num > len(items) {
		return 0, fmt.Errorf("invalid selection %q: choose 1-%d", line, len(items))
	}
	return num - 1, nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// probeCatalog loads the catalog of c, showing a spinner on w while the
// mirrors are probed.
func probeCatalog(ctx context.Context, w io.Writer, c manager.Configurator) ([]manager.Mirror, error) {
	if !isTerminal(w) {
		return c.Catalog(ctx)
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = fmt.Sprintf(" probing %s mirrors", c.Kind())
	s.Start()
	defer s.Stop()
	return c.Catalog(ctx)
}
