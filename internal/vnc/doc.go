// Package vnc connects to virtual machine consoles through the VNC
// websocket proxy.
//
// EndpointURL maps a console page (host plus project, app, cluster and vm
// query parameters) to wss://<host>/vnc/<project>/<app>/<cluster>/<vm>.
// RFBClient performs the RFB 3.8 handshake over that websocket and Bridge
// reports the session on a StatusLine:
//
//	connect             Connected to <desktop name>
//	disconnect (clean)  Disconnected
//	disconnect          Something went wrong, connection is closed
//	credentialsrequired fatal, Run returns ErrCredentialsRequired
package vnc
