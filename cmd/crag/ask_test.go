package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/kailas-cloud/crag/internal/domain"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestExpandGlobs(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.txt":          "a",
		"docs/b.md":      "b",
		"docs/deep/c.md": "c",
		"docs/skip.pdf":  "%PDF-",
	})

	paths, err := expandGlobs([]string{
		filepath.Join(dir, "docs", "**", "*.md"),
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "docs", "b.md"), // duplicate
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "docs", "b.md"),
		filepath.Join(dir, "docs", "deep", "c.md"),
	}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("expected %v, got %v", want, paths)
	}
}

func TestExpandGlobs_NoMatch(t *testing.T) {
	if _, err := expandGlobs([]string{filepath.Join(t.TempDir(), "*.pdf")}); err == nil {
		t.Fatal("expected error for pattern without matches")
	}
}

type fakeExtractor struct {
	fail string
}

func (f fakeExtractor) ExtractFile(_ context.Context, path string) (domain.Document, error) {
	if path == f.fail {
		return domain.Document{}, errors.New("unreadable")
	}
	return domain.Document{Name: filepath.Base(path), Text: "text of " + path}, nil
}

func TestExtractAll(t *testing.T) {
	var progress bytes.Buffer
	docs, err := extractAll(context.Background(), fakeExtractor{}, []string{"x/a.txt", "x/b.txt"}, &progress, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 || docs[0].Name != "a.txt" || docs[1].Name != "b.txt" {
		t.Errorf("unexpected documents %+v", docs)
	}

	_, err = extractAll(context.Background(), fakeExtractor{fail: "x/b.txt"}, []string{"x/a.txt", "x/b.txt"}, &progress, false)
	if err == nil || !strings.Contains(err.Error(), "x/b.txt") {
		t.Errorf("expected error naming the file, got %v", err)
	}
}

func TestExtractAll_Empty(t *testing.T) {
	docs, err := extractAll(context.Background(), fakeExtractor{}, nil, &bytes.Buffer{}, true)
	if err != nil || docs != nil {
		t.Errorf("expected nil, nil; got %v, %v", docs, err)
	}
}

func TestBuildAndPrintAskOutput(t *testing.T) {
	ans := domain.Answer{
		Text: "The main city is Paris.",
		Kind: domain.AnswerSynthesized,
		Fragments: []domain.Fragment{
			{Start: 10, End: 60, Source: "france.txt"},
			{Start: 0, End: 5},
		},
	}
	docs := []domain.Document{
		{Name: "france.txt", Text: "Paris is the capital of France and its largest city by population."},
		{Name: "empty.md", Text: "# Title"},
	}

	out := buildAskOutput("capital?", ans, docs, true)
	if out.Answer != "The **main** city is Paris." {
		t.Errorf("expected highlighted answer, got %q", out.Answer)
	}
	if len(out.Sources) != 2 || out.Sources[0].Source != "france.txt" {
		t.Errorf("unexpected sources %+v", out.Sources)
	}
	if out.Documents[0].Summary == "" || out.Documents[1].Summary != "" {
		t.Errorf("unexpected summaries %+v", out.Documents)
	}

	var buf bytes.Buffer
	printAskOutput(&buf, out, true)
	text := buf.String()
	for _, want := range []string{
		"Summary for france.txt",
		"No narrative content found.",
		"Answer (synthesized):",
		"1. france.txt [10:60]",
		"2. document [0:5]",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	buf.Reset()
	printAskOutput(&buf, out, false)
	if strings.Contains(buf.String(), "Summary for") {
		t.Error("summaries must be omitted when disabled")
	}
}
