// Package server exposes the transcription service over HTTP. It accepts
// streaming websocket connections, one session per connection, serves the
// batch upload API, and provides monitoring and management endpoints.
package server
