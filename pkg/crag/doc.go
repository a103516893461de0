// Package crag answers questions from a document corpus with corrective
// retrieval-augmented generation.
//
// A run chunks the corpus, embeds and indexes the fragments, retrieves the
// nearest ones, asks a judge which of them are relevant and then either
// synthesizes an answer from the relevant fragments or falls back to a web
// search when none survive the filter.
//
// # Client
//
//	client, _ := crag.New(
//	    crag.WithOpenAI(os.Getenv("OPENAI_API_KEY"), "text-embedding-3-small", "gpt-4o-mini"),
//	    crag.WithTavily(os.Getenv("TAVILY_API_KEY")),
//	)
//	ans, err := client.Ask(ctx, "Who signed the contract?",
//	    crag.Document{Name: "contract.txt", Text: text},
//	)
//	if errors.Is(err, crag.ErrFallbackUnavailable) {
//	    // neither the documents nor the web had an answer
//	}
//
// # One-shot
//
//	ans, err := crag.RunPipeline(ctx, question, text, crag.DefaultConfig(), crag.Capabilities{
//	    Embedder:  myEmbedder,
//	    Generator: myGenerator,
//	    Searcher:  mySearcher,
//	})
package crag
