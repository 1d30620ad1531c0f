// Package transport carries session messages between peers over HTTP.
//
// Every peer runs a small HTTP server. Messages are posted to
// /v1/channels/{channel} with the sender's ordinal in a header; presence is
// announced with /v1/hello and /v1/bye. Delivery is fire-and-forget: a
// message is sent once and may be lost or arrive out of order.
package transport
