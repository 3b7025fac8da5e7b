package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// exitWords end an interactive session.
var exitWords = map[string]bool{"exit": true, "quit": true, "q": true}

// runInteractive reads one thought per line from in until an exit word,
// EOF or cancellation, processing each through the pipeline.
func runInteractive(ctx context.Context, a *app, in io.Reader, out io.Writer, plain bool) error {
	stages := a.orch.Stages()
	fmt.Fprintf(out, "%s %d stages. Type a thought and press Enter; exit, quit or q to leave.\n",
		titleStyle.Render("thoughtflow"), len(stages))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitWords[strings.ToLower(line)] {
			fmt.Fprintln(out, "Bye.")
			return nil
		}

		rec, path, err := a.process(ctx, line)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
			continue
		}
		if err := renderRecord(out, rec, stages, path, plain); err != nil {
			return err
		}
	}
}
