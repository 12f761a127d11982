// Package config loads the slingshot TOML configuration.
//
// # Overview
//
// One file configures both binaries. Top-level keys belong to the upload
// client; the [server], [storage] and [[profiles]] tables belong to
// slingshot-server.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/slingshot/config.toml (default)
//  3. If the config file doesn't exist, fall back to Default()
//  4. If the file exists but fields are missing/empty, use defaults
//
// # Example
//
//	base_url = "http://127.0.0.1:8080/api/slingshot"
//	profile = "avatar"
//	upload_on_accept = true
//	concurrency = 4        # 0 = unlimited
//	request_timeout = 10   # seconds
//	log_level = "info"
//
//	[meta]
//	userId = 42
//
//	[server]
//	listen = "127.0.0.1:8080"
//	base_path = "/api/slingshot"
//	expires_in = 3600      # seconds
//
//	[storage]
//	driver = "local"       # local | s3 | minio
//	dir = "~/.local/share/slingshot/blobs"
//
//	[[profiles]]
//	name = "avatar"
//	max_size = 5242880
//	allowed_types = ["image/*"]
//	required_meta = ["userId"]
//
// # Validation
//
// Load rejects values that can never work: unknown storage drivers, negative
// concurrency, meta values that are neither strings nor numbers, and
// duplicate or unnamed profiles. Settings only the server needs are checked
// separately by ValidateServer so the client can run without them.
//
// # Path Expansion
//
// Paths beginning with ~ are expanded to the user's home directory and made
// absolute.
package config
