// Package broadcast fans task events out to long-lived client connections.
//
// A Hub tracks every registered connection and, per task id, the ordered list
// of connections subscribed to it. Delivery is best effort and at most once:
// nothing is buffered for connections that subscribe late, and a connection
// whose send fails is disconnected from the hub without affecting the other
// recipients of the same publish.
package broadcast
