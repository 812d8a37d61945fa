// Package main is a terminal bridge to a VM console.
//
// It turns a console page URL into the console websocket address, opens an
// RFB session through the orchestrator's VNC proxy and keeps a single status
// line up to date until the session ends. A session that asks for VNC
// credentials is fatal.
//
// Usage:
//
//	VNC_TOKEN=... ./vncbridge -page 'https://web-ui.example.com/vnc/?project=p&app=a&cluster=c&vm=v'
//
// Signals:
//   - SIGUSR1: send Ctrl+Alt+Del (typing "cad" on stdin does the same)
//   - SIGINT, SIGTERM: disconnect
package main
