// Package server implements the MCP (Model Context Protocol) server for crop detection.
//
// This package provides a JSON-RPC 2.0 server that exposes the detection pipeline
// through the MCP protocol, so MCP-compatible clients can count plant blobs in
// field images and inspect the measurements.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Detection:
//   - crop_detect: Run the full pipeline on one image and report every accepted blob
//   - detection_config: Show the parameters the server detects with
//   - color_sample: Read pixel colors in HSV and test them against the color range
//
// Basic Image Information:
//   - image_info: Load image and get metadata
//
// crop_detect accepts per-call overrides for the area and perimeter
// thresholds and the annotated write mode. Diagnostic images are written
// only when output_dir is given.
//
// # Image Caching
//
// The server maintains an in-memory cache of decoded images keyed by path.
// Repeated detections on the same file reuse the decoded image; the pipeline
// never mutates it. Failed loads are not cached.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string, prefixed with the failing stage and error kind
//     (e.g. "load: decode error: failed to open image: ...")
//
// # Usage
//
//	srv := server.New(config.Default(), logger)
//	if err := srv.Run(); err != nil {
//	    logger.Fatal(err)
//	}
package server
