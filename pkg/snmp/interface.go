package snmp

import "github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"

// PDUType names the alternative of the PDUs CHOICE a message carries.
type PDUType string

const (
	GET      PDUType = "get-request"
	GET_NEXT PDUType = "get-next-request"
	RESPONSE PDUType = "get-response"
	SET      PDUType = "set-request"
	TRAP     PDUType = "trap"
	GET_BULK PDUType = "get-bulk-request"
	INFORM   PDUType = "inform-request"
	TRAP_V2  PDUType = "snmpV2-trap"
	REPORT   PDUType = "report"
)

const (
	V1  = 0
	V2C = 1
)

type Connection interface {
	Send(pType PDUType, pdu *PDU) error
	Receive() (*PDU, error)
	Close() error
}

type Protocol interface {
	Dial(target string) (Connection, error)
	DecodeFrame(frame []byte) (*Message, error)
	EncodePDU(pType PDUType, pdu *PDU) ([]byte, error)
}

// VarBind is one variable binding. Syntax is the name of the value type, for example
// "Counter32"; an empty Syntax is inferred from the Go shape of Value.
type VarBind struct {
	OID    asn1value.OID
	Syntax string
	Value  asn1value.Value
}

// Trap holds the SNMPv1 trap fields that replace the request id and error fields.
type Trap struct {
	Enterprise   asn1value.OID
	AgentAddr    []byte
	GenericTrap  int64
	SpecificTrap int64
	TimeStamp    int64
}

// PDU is the body of a message. For GET_BULK ErrorStatus and ErrorIndex carry the
// non-repeaters and max-repetitions fields. Trap is set only for TRAP.
type PDU struct {
	Type        PDUType
	RequestID   int64
	ErrorStatus int64
	ErrorIndex  int64
	Trap        *Trap
	VarBinds    []VarBind
}

type Message struct {
	Version   int64
	Community string
	PDU       PDU
}
