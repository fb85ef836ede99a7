// nl2sql-batch runs a file of natural-language questions through the
// pipeline with a pool of workers and a live progress display, then
// writes the per-question results to a JSON report.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"nl2sql/internal/logger"
	"nl2sql/internal/pipeline"
)

type batchResult struct {
	Question   string `json:"question"`
	Success    bool   `json:"success"`
	SQL        string `json:"sql,omitempty"`
	Error      string `json:"error,omitempty"`
	Retries    int    `json:"retries"`
	DurationMS int64  `json:"duration_ms"`
}

func main() {
	questionsPath := flag.String("questions", "", "file with one question per line ('#' comments allowed)")
	configPath := flag.String("config", "", "path to YAML config (env overrides apply)")
	outPath := flag.String("out", "batch_results.json", "path for the JSON report")
	workers := flag.Int("workers", 2, "number of concurrent workers")
	dryRun := flag.Bool("dry-run", false, "validate and compile generated SQL without executing it")
	verbose := flag.Bool("v", false, "log pipeline internals to stderr")
	flag.Parse()

	if *questionsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: nl2sql-batch -questions <file> [-config <file>] [-out <file>] [-workers N] [-dry-run]")
		os.Exit(2)
	}

	questions, err := readQuestions(*questionsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read questions: %v\n", err)
		os.Exit(1)
	}
	if len(questions) == 0 {
		fmt.Fprintln(os.Stderr, "no questions found in", *questionsPath)
		os.Exit(1)
	}

	cfg, err := pipeline.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := zap.NewNop()
	if *verbose {
		log, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
			os.Exit(1)
		}
	}

	p, err := pipeline.Assemble(cfg, nil, nil, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "assemble pipeline: %v\n", err)
		os.Exit(1)
	}

	mode := "Executing"
	if *dryRun {
		mode = "Dry-running"
	}
	title := fmt.Sprintf("🧠 %s %d questions with %d workers", mode, len(questions), *workers)

	taskNames := make([]string, len(questions))
	for i := range questions {
		taskNames[i] = taskName(i, questions[i])
	}
	mp := logger.NewBatchProgress(title, taskNames)
	mp.Start()

	results := make([]batchResult, len(questions))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = resolve(p, mp, taskNames[i], questions[i], *dryRun)
			}
		}()
	}
	for i := range questions {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	mp.Stop()
	fmt.Print(mp.Summary())

	if err := writeReport(*outPath, results); err != nil {
		fmt.Fprintf(os.Stderr, "write report: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Report written to %s\n", *outPath)

	for _, r := range results {
		if !r.Success {
			os.Exit(1)
		}
	}
}

func resolve(p *pipeline.Pipeline, mp *logger.BatchProgress, task, question string, dryRun bool) batchResult {
	mp.StartQuery(task, question)

	start := time.Now()
	var res *pipeline.Result
	if dryRun {
		res = p.DryRun(context.Background(), question, nil)
	} else {
		res = p.Run(context.Background(), question, nil)
	}

	out := batchResult{
		Question:   question,
		Success:    res.Success,
		SQL:        res.SQL,
		Error:      res.Error,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if res.Diagnostics != nil {
		out.Retries = res.Diagnostics.Retries
	}

	if res.Success {
		mp.Complete(task)
	} else {
		mp.Fail(task, fmt.Errorf("%s", res.Error))
	}
	return out
}

// readQuestions loads one question per line, skipping blanks and '#'
// comments.
func readQuestions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var questions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	return questions, scanner.Err()
}

// taskName truncates on runes so multibyte questions stay intact.
func taskName(i int, question string) string {
	name := fmt.Sprintf("q%02d %s", i+1, question)
	if runes := []rune(name); len(runes) > 32 {
		name = string(runes[:29]) + "..."
	}
	return name
}

func writeReport(path string, results []batchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
