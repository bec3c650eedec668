// Package gameserver coordinates rooms for connected clients.
//
// The Dispatcher owns the room registry and applies every inbound action on
// one goroutine. Notifications leave through the Hub, which holds one
// bounded Outbox per live connection; transports drain their outbox and
// write to the wire. Mirror records are handed to a Recorder and never read
// back.
package gameserver
