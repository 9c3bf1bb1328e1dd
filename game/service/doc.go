// Package service provides the business logic layer for the mine cart simulator.
//
// The service package implements:
//   - Multi-session simulation management
//   - Ticking, running to the first crash and running to the last cart
//   - Stateless solving of ad hoc layouts
//   - Paginated tick history
//
// Core Interfaces:
//
// SimulationService is the main service interface used by every transport.
// SessionManager handles session creation, retrieval and persistence.
// ConfigManager loads and saves track configurations.
//
// Architecture:
//
// The service layer sits between the transports (HTTP, WebSocket, MCP) and
// the engine. Each session owns its own engine, and every mutating call is
// saved through the SessionManager before it returns.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("tracks")
//	sim := service.NewSimulationService(sessionMgr, configMgr)
//
//	info, err := sim.CreateSession(ctx, "classic")
//	run, err := sim.RunToFirstCrash(ctx, info.ID)
//	fmt.Println(run.Answer)
package service
