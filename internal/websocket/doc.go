// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

/*
Package websocket implements the relay side of MedLink's real-time transport.

A Hub groups relay clients by channel ("notifications/42",
"consultations/917", "calls/7") and fans published payloads out to every
subscriber of a channel. Frames a client sends are republished to the other
subscribers of its channel; {"type":"ping"} frames are answered with
{"type":"pong"} instead.

Architecture:

	        Publish(channel, data)
	                 │
	           ┌─────┴─────┐
	           │    Hub    │  channel → clients
	           └─────┬─────┘
	     ┌───────────┼───────────┐
	 Client A     Client B     Client C
	(readPump,   (readPump,   (readPump,
	 writePump)   writePump)   writePump)

Each client has two goroutines:
  - readPump: reads frames, answers pings, republishes the rest
  - writePump: writes queued payloads and transport pings, enforces token expiry

A client whose queue is full when a payload arrives is disconnected. When the
connection token expires the relay closes the socket with code 1008 (policy
violation), which tells the client to fetch a new token before reconnecting.

Usage Example:

	hub := websocket.NewHub(256)
	go hub.RunWithContext(ctx)

	client := websocket.NewClient(hub, conn, "consultations/917", claims.Subject, claims.ExpiresAt.Time, 256)
	client.Start()

	hub.Publish("consultations/917", []byte(`{"type":"chat","text":"hello"}`))
*/
package websocket
