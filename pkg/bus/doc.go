// SPDX-License-Identifier: BSD-3-Clause

// Package bus implements the pub/sub key-value interface the rest of this
// module treats as an external collaborator: configuration keys
// (device-settings:*, instrument:*), status keys (status:*), command
// channels (command:<key>), and a timeseries append used by the telemetry
// loop. It is backed by NATS: JetStream KV for set/get, a JetStream stream
// for timeseries, and core publish/subscribe for commands and status
// fan-out.
//
// An embedded server (embedded.go) is available for standalone operation;
// production deployments point Client at an external NATS cluster instead.
package bus
