// Command classify reads raw chat lines from stdin and prints the decoded
// record for each, one JSON object per line. Useful for checking pattern
// coverage against captured server logs.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/guildlink/bridge-app/internal/classify"
	"github.com/guildlink/bridge-app/internal/config"
	"github.com/guildlink/bridge-app/internal/patterns"
)

func main() {
	flavor := flag.String("flavor", "hypixel", "pattern catalog flavor")
	botName := flag.String("bot", "", "bot account username (marks self-echoes)")
	flag.Parse()

	g := &config.Guild{
		ID:      "cli",
		Enabled: true,
		Account: config.Account{Username: *botName},
		Server:  config.Server{ServerName: *flavor},
	}

	classifier := classify.New(patterns.NewDefaultCatalog(), false)
	out := json.NewEncoder(os.Stdout)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
	for scanner.Scan() {
		rec := classifier.Classify(scanner.Text(), g)
		if err := out.Encode(describe(rec)); err != nil {
			log.Fatalf("encode: %v", err)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("read stdin: %v", err)
	}
}

type line struct {
	Class  string          `json:"class"`
	Record classify.Record `json:"record"`
}

func describe(rec classify.Record) line {
	return line{Class: className(rec), Record: rec}
}

func className(rec classify.Record) string {
	switch rec.(type) {
	case classify.GuildChat:
		return "chat"
	case classify.Event:
		return "event"
	case classify.System:
		return "system"
	case classify.Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}
