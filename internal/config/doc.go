// Package config defines configuration structures for the yeet CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (YEET_ prefix)
//   - YAML configuration file
//
// # Example
//
//	backend_base_url: https://api.example.com
//	metadata_path: /get-video-link
//	assumed_average_throughput: 1.5MiB
//	long_download_threshold: 15s
//	store_url: sqlite:///var/lib/yeet/records.db
//	credentials_url: file:///var/lib/yeet/credentials
//	facility: aria2
//	aria2:
//	  rpc_url: http://localhost:6800/jsonrpc
//	  secret: changeme
package config
