// Command tsbot is the CLI for the military-admissions assistant.
//
// Usage:
//
//	tsbot ask "Điểm chuẩn Học viện Kỹ thuật Quân sự năm 2024?"
//	tsbot chat --session phien-1
//	tsbot ingest --config config.yaml
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Ask     AskCmd     `cmd:"" help:"Answer one question and exit."`
	Chat    ChatCmd    `cmd:"" help:"Interactive conversation on one session."`
	Ingest  IngestCmd  `cmd:"" help:"Index chunks, SQL examples and router exemplars."`

	Config   string `short:"c" help:"Path to config file." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)."`
	LogFile  string `help:"Log file path (empty = stderr)."`
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("tsbot"),
		kong.Description("Trợ lý tư vấn tuyển sinh quân sự Việt Nam."),
		kong.UsageOnError(),
	)

	cleanup, err := initLogger(cli.LogLevel, cli.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx.FatalIfErrorf(ctx.Run(cli))
}
