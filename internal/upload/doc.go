// Package upload implements the client-side upload state machine.
//
// # Overview
//
// An Orchestrator takes a batch of files through two phases:
//
//  1. Authorize: every file is sent to the signing server concurrently.
//     Each ends accepted (key and url granted) or rejected.
//  2. Transfer: once every authorization settled, accepted files are
//     uploaded concurrently to their signed urls.
//
// Every file ends in exactly one terminal status: rejected, done, failed or
// aborted. One file's failure never changes a sibling's outcome.
//
// # File Lifecycle
//
//	authorizing ──→ accepted ──→ uploading ──→ done
//	     │              │            │
//	     ↓              │            ↓
//	  rejected          │          failed
//	                    ↓
//	  (any non-terminal) ──Abort──→ aborted
//
// Progress is non-nil only while a file is uploading and is clamped to
// 0..100. Terminal records carry no progress.
//
// # Overall Status
//
//   - idle: no batch, or after Clear
//   - uploading: a batch is in flight
//   - done: every file of the batch is terminal
//   - failed: Close was called mid-batch, or Strict is set and some file
//     did not end done
//
// # Concurrency Model
//
// One loop goroutine owns the records. Workers report events over a channel
// and wait for the loop to apply them, so events of one file are applied in
// the order they happened. Each event goes through transition, a pure
// function that rejects anything not allowed from the current status; late
// events for an aborted file are dropped there.
//
// After each applied event the loop publishes a Snapshot to the Store:
//
//   - Snapshot(), Files(), Status(): copy of the latest state
//   - Subscribe(): buffered channel that always holds the newest unread snapshot
//   - OnChange(): synchronous callback for every snapshot, in order
//
// # Usage Example
//
//	client, _ := slingshot.NewClient(baseURL, "avatar")
//	orch, err := upload.New(upload.Options{Transport: client, Meta: slingshot.Meta{"userId": 42}})
//	if err != nil {
//		return err
//	}
//	defer orch.Close()
//
//	if err := orch.Upload(ctx, []upload.File{upload.BytesFile("a.png", "image/png", data)}); err != nil {
//		return err
//	}
//	for _, rec := range orch.Files() {
//		fmt.Println(rec.Name, rec.Status, rec.Key, rec.Error)
//	}
package upload
