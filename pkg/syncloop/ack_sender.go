package syncloop

import (
	"context"

	"nearclip/pkg/protocol"
	"nearclip/pkg/transport"
)

// ManagerAckSender adapts a transport.Manager to the AckSender surface
// Receiver needs, routing Ack delivery through the manager's priority
// selection; an Ack that fails on its chosen channel is not retried on
// another one.
type ManagerAckSender struct {
	Manager *transport.Manager
}

// SendAck implements AckSender.
func (a *ManagerAckSender) SendAck(deviceID string, ack *protocol.Message) error {
	return a.Manager.SendToDevice(context.Background(), deviceID, ack)
}
