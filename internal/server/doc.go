// Package server exposes an ecoMAX360 controller over HTTP.
//
// Cached readings come from the poller and are served as JSON; every new
// snapshot is also pushed to WebSocket clients on /ws. Write endpoints
// change the preset or a setpoint. See Server.Handler for the routes.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{Listen: ":8080"}, poll, client)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	poll.AddSink(srv)
//	go poll.Run(ctx)
//	err = srv.Run(ctx)
//
// # WebSocket Stream
//
// Each text message is one poller.Snapshot in JSON. On connect the client
// first receives every cached snapshot, then updates as they happen. The
// server pings every 54 seconds; clients that stop answering or fall 16
// messages behind are dropped.
//
// # TLS
//
// Set CertPath and KeyPath to serve HTTPS and WSS.
package server
