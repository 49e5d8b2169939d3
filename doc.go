// Package loom provides a token-aware conversation engine for LLM
// applications: persistent threads with ordered messages, automatic
// context assembly against a model's token budget, rolling
// summarization of old conversation segments, and a multi-agent
// collaboration pipeline.
//
// # Key Features
//
//   - Persistent conversation threads on PostgreSQL (in-memory store for
//     tests and development)
//   - Deterministic token estimation and context assembly with
//     oldest-first trimming
//   - Automatic rolling summarization once enough messages accumulate,
//     committed atomically with the trigger counter reset
//   - Three-level model resolution (request override, thread default,
//     process default) against a model catalog
//   - Per-thread FIFO serialization of the whole send pipeline;
//     distinct threads run fully concurrently
//   - Planner/Writer/Reviewer collaboration pipeline with a
//     deterministic complexity classifier (collab package)
//   - Fire-and-forget usage recording with cost reports (usage package)
//
// # Quick Start
//
//	store := storage.NewMemoryStore()
//	caller, _ := openrouter.New(openrouter.Config{APIKey: key})
//	engine, _ := loom.New(&loom.Config{
//	    Store:  store,
//	    Caller: caller,
//	})
//
//	thread, _ := engine.CreateThread(ctx, loom.ThreadParams{
//	    SystemPrompt: "You are a helpful assistant.",
//	})
//	res, _ := engine.SendMessage(ctx, thread.ID, loom.SendParams{
//	    Content: "Hello!",
//	})
//	fmt.Println(res.Message.Content)
package loom
