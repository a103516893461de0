package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/crag/internal/answer"
	"github.com/kailas-cloud/crag/internal/domain"
	"github.com/kailas-cloud/crag/internal/transport/pdf"
	"github.com/kailas-cloud/crag/internal/usecase/chunk"
)

var (
	askQuestion  string
	askFiles     []string
	askTopK      int
	askTimeout   time.Duration
	askJSON      bool
	askHighlight bool
	askNoSummary bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from local documents",
	Long: `Answer a question from PDF, Markdown or text files.

Examples:
  crag ask -q "What is the capital of France?" -f notes.txt
  crag ask -q "main risks" -f "reports/**/*.pdf" --highlight
  crag ask -q "who signed it" -f contract.pdf --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question to answer (required)")
	askCmd.Flags().StringSliceVarP(&askFiles, "file", "f", nil, "file or glob (repeatable, ** supported)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "fragments to retrieve (default from config)")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 0, "pipeline timeout (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.Flags().BoolVar(&askHighlight, "highlight", false, "emphasise key words in the answer")
	askCmd.Flags().BoolVar(&askNoSummary, "no-summary", false, "do not print per-file summaries")
	_ = askCmd.MarkFlagRequired("question")
}

type askOutput struct {
	Question  string            `json:"question"`
	Kind      domain.AnswerKind `json:"kind"`
	Answer    string            `json:"answer"`
	Sources   []sourceOutput    `json:"sources,omitempty"`
	Documents []documentOutput  `json:"documents,omitempty"`
}

type sourceOutput struct {
	Source string `json:"source,omitempty"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

type documentOutput struct {
	Name    string `json:"name"`
	Runes   int    `json:"runes"`
	Summary string `json:"summary,omitempty"`
}

func runAsk(cmd *cobra.Command, _ []string) error {
	question := strings.TrimSpace(askQuestion)
	if question == "" {
		return errors.New("question must not be empty")
	}

	paths, err := expandGlobs(askFiles)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := extractAll(ctx, a.extractor, paths, cmd.ErrOrStderr(), !askJSON)
	if err != nil {
		return err
	}

	runCfg := a.pipeline.Config()
	if askTopK > 0 {
		runCfg.TopK = askTopK
	}
	if askTimeout > 0 {
		runCfg.Timeout = askTimeout
	}

	corpus := ""
	if len(docs) > 0 {
		corpus = chunk.ComposeCorpus(docs)
	}

	ans, err := a.pipeline.RunWithConfig(ctx, question, corpus, runCfg)
	if err != nil {
		return err
	}

	out := buildAskOutput(question, ans, docs, askHighlight)
	if askJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printAskOutput(cmd.OutOrStdout(), out, !askNoSummary)
	return nil
}

// expandGlobs resolves every pattern with doublestar and returns sorted unique paths.
// A pattern without glob metacharacters must name an existing file.
func expandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", p)
		}
		for _, m := range matches {
			if st, err := os.Stat(m); err != nil || st.IsDir() {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

type fileExtractor interface {
	ExtractFile(ctx context.Context, path string) (domain.Document, error)
}

func extractAll(
	ctx context.Context, ex fileExtractor, paths []string, progress io.Writer, showProgress bool,
) ([]domain.Document, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan]Reading[reset]"),
			progressbar.OptionClearOnFinish(),
		)
	}

	docs := make([]domain.Document, 0, len(paths))
	for _, p := range paths {
		doc, err := ex.ExtractFile(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", p, err)
		}
		docs = append(docs, doc)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return docs, nil
}

func buildAskOutput(question string, ans domain.Answer, docs []domain.Document, highlight bool) askOutput {
	text := ans.Text
	if highlight {
		text = answer.Highlight(text)
	}

	out := askOutput{Question: question, Kind: ans.Kind, Answer: text}
	for _, f := range ans.Fragments {
		out.Sources = append(out.Sources, sourceOutput{Source: f.Source, Start: f.Start, End: f.End})
	}
	for _, d := range docs {
		out.Documents = append(out.Documents, documentOutput{
			Name:    d.Name,
			Runes:   utf8.RuneCountInString(d.Text),
			Summary: pdf.Summary(d.Text),
		})
	}
	return out
}

func printAskOutput(w io.Writer, out askOutput, summaries bool) {
	if summaries {
		for _, d := range out.Documents {
			fmt.Fprintf(w, "Summary for %s\n", d.Name)
			if d.Summary == "" {
				fmt.Fprintln(w, "  No narrative content found.")
			} else {
				for _, line := range strings.Split(d.Summary, "\n") {
					fmt.Fprintf(w, "  %s\n", line)
				}
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintf(w, "Answer (%s):\n%s\n", out.Kind, out.Answer)

	if len(out.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, s := range out.Sources {
			src := s.Source
			if src == "" {
				src = "document"
			}
			fmt.Fprintf(w, "  %d. %s [%d:%d]\n", i+1, src, s.Start, s.End)
		}
	}
}
