// Package api serves the mine cart simulator over HTTP.
//
// Endpoints (all JSON unless noted):
//
// Sessions:
//   - POST   /api/sessions                  {"config_id": "classic"}
//   - GET    /api/sessions                  ?sort=created|accessed&order=asc|desc&limit=N
//   - GET    /api/sessions/{id}
//   - DELETE /api/sessions/{id}
//
// Simulation:
//   - GET  /api/sessions/{id}/state
//   - GET  /api/sessions/{id}/render         text/plain, carts drawn over the track
//   - POST /api/sessions/{id}/tick           {"ticks": 10, "reset": false}
//   - POST /api/sessions/{id}/run            {"until": "first_crash"|"last_cart"}
//   - POST /api/sessions/{id}/reset
//   - GET  /api/sessions/{id}/history        ?page=1&limit=20&order=desc
//   - POST /api/solve                        {"layout": [...]} or {"track": "raw map"}
//
// Tracks:
//   - GET  /api/configs
//   - GET  /api/configs/{id}
//   - POST /api/configs?id=name              body is a track config
//
// Misc:
//   - GET /api/health
//   - GET /ws?session={id}                   WebSocket stream, see transport/websocket
//
// Every request gets an X-Request-ID (kept when the client sends one) and an
// access log line. Errors are {"error": "..."} with 404 for unknown sessions
// or tracks, 400 for invalid input, 409 for duplicate sessions, 422 when a run
// hits the tick limit and 500 otherwise.
//
// Tick, run and reset push the new state to WebSocket subscribers, preceded
// by one crash event per collision.
package api
