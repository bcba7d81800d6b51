package snmp

import (
	"fmt"
	"net"
	"time"
)

type connection struct {
	protocol *protocol
	conn     *net.UDPConn
}

func (c *connection) Close() error {
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return fmt.Errorf("connection already closed")
}

func (c *connection) Send(pType PDUType, pdu *PDU) error {

	bytes, err := c.protocol.EncodePDU(pType, pdu)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(bytes)
	if err != nil {
		return fmt.Errorf("error sending SNMP message: %v", err)
	}
	return nil
}

func (c *connection) Receive() (*PDU, error) {
	buffer := make([]byte, c.protocol.bufferSize)
	c.conn.SetReadDeadline(time.Now().Add(c.protocol.receiveTimeout))
	n, err := c.conn.Read(buffer)
	if err != nil {
		return nil, fmt.Errorf("error reading SNMP message: %v", err)
	}

	message, err := c.protocol.DecodeFrame(buffer[:n])
	if err != nil {
		return nil, err
	}
	return &message.PDU, nil
}
