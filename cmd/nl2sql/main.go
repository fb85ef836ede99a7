// nl2sql resolves one natural-language question to SQL, runs it and
// prints the result envelope as JSON.
//
// Usage:
//
//	nl2sql -q "Which branches are in CA?" [-config config.yaml] [-clarify '{"min_balance":50000}']
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"nl2sql/internal/pipeline"
)

func main() {
	var (
		question   = flag.String("q", "", "natural-language question (required)")
		configPath = flag.String("config", "", "config YAML path (optional, env vars apply either way)")
		clarifyRaw = flag.String("clarify", "", "clarified values as a JSON object (optional)")
		pretty     = flag.Bool("pretty", true, "indent the JSON output")
		verbose    = flag.Bool("v", false, "verbose logging to stderr")
	)
	flag.Parse()

	if *question == "" {
		flag.Usage()
		os.Exit(2)
	}

	log := zap.NewNop()
	if *verbose {
		var err error
		log, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
			os.Exit(1)
		}
	}
	defer log.Sync()

	cfg, err := pipeline.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	var clarified map[string]any
	if *clarifyRaw != "" {
		if err := json.Unmarshal([]byte(*clarifyRaw), &clarified); err != nil {
			fmt.Fprintf(os.Stderr, "parse -clarify: %v\n", err)
			os.Exit(2)
		}
	}

	p, err := pipeline.Assemble(cfg, nil, nil, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "assemble pipeline: %v\n", err)
		os.Exit(1)
	}

	result := p.Run(context.Background(), *question, clarified)

	var out []byte
	if *pretty {
		out, err = json.MarshalIndent(result, "", "  ")
	} else {
		out, err = json.Marshal(result)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if !result.Success {
		os.Exit(1)
	}
}
