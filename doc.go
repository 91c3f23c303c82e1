// Package docchat embeds the document chat engine in a Go program: ingest
// files into a local vector index and ask questions answered strictly from
// their content, with a locally hosted model doing embeddings and chat.
//
// The index lives entirely on local disk; the only external process is the
// model host (Ollama or any OpenAI-compatible server).
//
//	client, _ := docchat.Open(ctx,
//	    docchat.WithDataDir("./data"),
//	    docchat.WithModelHost("http://localhost:11434/v1"),
//	)
//	_, _ = client.AddFile(ctx, "report.pdf", false)
//	answer, _ := client.Ask(ctx, "", "What does the report conclude?")
//	fmt.Println(answer.Reply, answer.Sources)
package docchat
