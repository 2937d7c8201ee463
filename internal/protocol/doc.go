// Package protocol defines the JSON envelopes exchanged over the streaming
// websocket. Inbound messages carry base64 encoded little-endian float32
// audio or an end-of-stream marker; outbound messages carry transcription
// results. Binary frames are accepted as raw float32 audio.
package protocol
