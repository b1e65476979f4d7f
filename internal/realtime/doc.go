// Package realtime holds the in-process event distribution core: the connection
// registry, ticket rooms and the per-ticket sequencer. It is transport agnostic;
// the websocket handler drains each client's outbound queue.
package realtime
