package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
)

type globalOptions struct {
	Config   string `short:"c" long:"config" description:"path to the YAML configuration file"`
	LogLevel string `long:"log-level" description:"override the configured log level (debug|info|warn|error)"`
}

func newParser(app *application) *flags.Parser {
	parser := flags.NewParser(&app.global, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "webllm"

	_, _ = parser.AddCommand("stop",
		"Stop WebLLM processes",
		"Find browser tabs and local servers belonging to WebLLM, stop them and remove leftover artifacts.",
		&stopCommand{app: app})
	_, _ = parser.AddCommand("serve",
		"Serve the WebLLM test page",
		"Serve a directory on the first free port with cross-origin isolation headers until interrupted.",
		&serveCommand{app: app})

	return parser
}

func main() {
	app := newApplication(os.Stdout)
	parser := newParser(app)

	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, flagsErr.Message)
			os.Exit(0)
		}
		if code, ok := exitCodeOf(err); ok {
			os.Exit(code)
		}
		fmt.Fprintf(os.Stderr, "webllm: %v\n", err)
		os.Exit(1)
	}
}
