// Package ui is the Bubble Tea front end of the upload client.
//
// # Screen
//
//	slingshot  avatar  uploading  1/3 done  ████████░░░░  66%
//
//	› uploading     holiday.png   2.1 MiB ██████░░░░░░  50%
//	  done          avatar.jpg    310 KiB avatar/avatar.jpg
//	  rejected      setup.exe      88 KiB File type not allowed
//
//	  Staged (1) · press u to upload
//
//	  ╭ log pane (l) ──────────────────────────────────╮
//	  │ 12:04:05 INFO  upload complete file=avatar.jpg │
//	  ╰────────────────────────────────────────────────╯
//	  u upload staged • x abort selected • c clear batch • ? help
//
// # Data Flow
//
// New subscribes to the widget's snapshot stream. Each snapshot arrives as a
// snapshotMsg; the model stores it and immediately waits for the next one.
// Because the stream is latest-wins, a slow render never queues stale
// snapshots. Key presses call straight into the widget (Abort, Clear,
// UploadPending); their effects come back through the same stream.
//
// The log pane re-reads the tail of the client's JSON log file once a second
// while it is visible, through internal/logtail.
//
// # Preferences
//
// The theme (T) and the log pane toggle (l) are saved to prefs.toml as soon
// as they change.
package ui
