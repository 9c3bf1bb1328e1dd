// Package websocket streams simulation updates to browser clients.
//
// A single Hub owns every connection. Clients join a session with
// /ws?session=<id> and receive JSON messages for that session only:
//
//	{"session_id": "ab12", "event": "state_update", "sim_state": {...}}
//	{"session_id": "ab12", "event": "crash", "data": {"tick": 14, "pos": {"x": 7, "y": 3}, "cart_ids": [...]}}
//
// The API calls BroadcastToSession after every mutating request and
// BroadcastCrashes for the collisions that request produced. Broadcasts are
// queued and delivered by the Run goroutine, which is the only code that
// touches the client map. Messages that do not fit in the queue are dropped
// and logged.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
package websocket
