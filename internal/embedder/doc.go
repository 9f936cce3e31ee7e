// Package embedder turns hotel descriptions and search queries into vector
// embeddings.
//
// Four providers are available: OpenAI (via go-openai), Jina AI (REST),
// OpenAI-compatible self-hosted servers (via langchaingo), and an offline
// feature-hashing provider for development. Remote providers retry with
// exponential backoff. New layers an optional rate limit and an LRU cache
// keyed by the SHA-256 of the input text.
//
// # Basic Usage
//
//	emb, err := embedder.New(cfg.Embedding)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "Quiet boutique hotel near the river with a rooftop bar",
//	})
//	fmt.Printf("Vector dimension: %d\n", len(result.Vector))
//
// # Errors
//
// Generation failures wrap types.ErrGenerationFailure and a missing API key
// wraps types.ErrConfigurationMissing. An empty text is valid input and
// always produces a vector; a zero vector is never substituted for a failure.
package embedder
