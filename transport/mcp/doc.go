// Package mcp exposes the simulator to AI agents over the Model Context
// Protocol.
//
// Client registers the tools below on an mcp-go server and answers each call
// by calling the REST API, so the MCP process holds no simulation state:
//
//   - create_session, list_sessions, get_session
//   - sim_state: tick, carts, first crash and the rendered track with a ruler
//   - tick: advance N ticks, optionally after a reset
//   - run_until: first_crash or last_cart
//   - reset_sim, tick_history
//   - list_tracks, solve_track (stateless answers for a raw layout)
//   - track_instructions, describe_cell
//
// Transport modes:
//
//	// stdio, for local MCP hosts
//	server.ServeStdio(mcp.NewClient("http://localhost:8080").GetMCPServer())
//
//	// HTTP, mounted by the main server at POST /mcp
//	client.GetMCPServer().HandleMessage(ctx, body)
package mcp
