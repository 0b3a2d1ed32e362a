// Package scisearch embeds the scisearch query pipeline in another Go
// program: it loads a prebuilt ANN index and its corpus in-process and
// answers "which abstracts are most similar to this text?".
//
//	client, _ := scisearch.Open(ctx,
//	    scisearch.WithIndex("data/index.ann"),
//	    scisearch.WithCSVCorpus("data/metadata.csv"),
//	    scisearch.WithEmbedder(myEncoder),
//	)
//	defer client.Close()
//	hits, _ := client.Search(ctx, "does the virus survive on surfaces?")
//
// Build the index with the scisearch-index tool.
package scisearch
