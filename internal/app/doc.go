// Package app is the composition root of the slingshot upload client.
//
// # Overview
//
// Run wires configuration, logging, the transport client, the upload
// orchestrator and the widget together, then hands the batch to one of two
// front ends:
//
//   - the Bubble Tea UI (internal/ui), the default
//   - a line reporter for scripts and CI, selected with Options.Plain
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()          Read ~/.config/slingshot/config.toml
//	       ├─────> localfile.OpenAll()    Stat files, sniff content types
//	       ├─────> slingshot.NewClient()  Authorization + transfer client
//	       ├─────> upload.New()           Orchestrator loop
//	       ├─────> widget.Connect()       Accept/stage/upload surface
//	       └─────> ui.Run() / runPlain()  Front end (blocks)
//
// # Logging
//
// In TUI mode the terminal belongs to Bubble Tea, so logs are appended as
// JSON lines to the configured log_file and shown in the UI's log pane. In
// plain mode logs go to stderr as text and progress lines go to stdout.
//
// # Exit Status
//
// Run returns ErrIncomplete when any file of the batch ended in a status
// other than done, including when the user quit before uploading staged
// files. cmd/slingshot maps that to exit code 1.
package app
