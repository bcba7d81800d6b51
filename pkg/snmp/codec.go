package snmp

import (
	"fmt"
	"log/slog"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1codec"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

// NewCodec returns the BER codec used for SNMP frames.
func NewCodec(log *slog.Logger, maxLength uint64) *asn1codec.Codec {
	return asn1codec.New(asn1core.BER, asn1codec.Options{
		MaxLength: maxLength,
		Resolver:  Module,
		Logger:    log,
	})
}

var defaultCodec = NewCodec(nil, 1<<16)

// Encode returns the BER encoding of msg.
func Encode(msg *Message) ([]byte, error) {
	return encodeWith(defaultCodec, msg)
}

// DecodeFrame decodes one SNMP message.
func DecodeFrame(frame []byte) (*Message, error) {
	return decodeWith(defaultCodec, frame)
}

func encodeWith(c *asn1codec.Codec, msg *Message) ([]byte, error) {
	v, err := msg.value()
	if err != nil {
		return nil, err
	}
	return c.Encode(MessageType, v)
}

func decodeWith(c *asn1codec.Codec, frame []byte) (*Message, error) {
	v, err := c.Decode(MessageType, frame)
	if err != nil {
		return nil, err
	}
	return messageFrom(v)
}

func (msg *Message) value() (asn1value.Value, error) {
	pdu, err := msg.PDU.value()
	if err != nil {
		return nil, err
	}
	return asn1value.NewSequence().
		Set("version", asn1value.Integer(msg.Version)).
		Set("community", asn1value.OctetString(msg.Community)).
		Set("data", asn1value.NewChoice(string(msg.PDU.Type), pdu)), nil
}

func (pdu *PDU) value() (asn1value.Value, error) {
	list := make(asn1value.List, 0, len(pdu.VarBinds))
	for _, vb := range pdu.VarBinds {
		v, err := vb.value()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	seq := asn1value.NewSequence()
	switch pdu.Type {
	case TRAP:
		if pdu.Trap == nil {
			return nil, fmt.Errorf("trap PDU without trap fields")
		}
		seq.Set("enterprise", pdu.Trap.Enterprise).
			Set("agent-addr", asn1value.OctetString(pdu.Trap.AgentAddr)).
			Set("generic-trap", asn1value.Integer(pdu.Trap.GenericTrap)).
			Set("specific-trap", asn1value.Integer(pdu.Trap.SpecificTrap)).
			Set("time-stamp", asn1value.Integer(pdu.Trap.TimeStamp))
	case GET_BULK:
		seq.Set("request-id", asn1value.Integer(pdu.RequestID)).
			Set("non-repeaters", asn1value.Integer(pdu.ErrorStatus)).
			Set("max-repetitions", asn1value.Integer(pdu.ErrorIndex))
	case GET, GET_NEXT, RESPONSE, SET, INFORM, TRAP_V2, REPORT:
		seq.Set("request-id", asn1value.Integer(pdu.RequestID)).
			Set("error-status", asn1value.Integer(pdu.ErrorStatus)).
			Set("error-index", asn1value.Integer(pdu.ErrorIndex))
	default:
		return nil, fmt.Errorf("unknown PDU type %q", pdu.Type)
	}
	return seq.Set("variable-bindings", list), nil
}

// syntaxOf picks the value type of a binding without an explicit Syntax.
func syntaxOf(v asn1value.Value) (string, error) {
	switch v.(type) {
	case asn1value.Integer:
		return Integer32.Attributes().Name, nil
	case asn1value.OctetString:
		return OctetString.Attributes().Name, nil
	case asn1value.OID:
		return ObjectID.Attributes().Name, nil
	case asn1value.Null, nil:
		return Null.Attributes().Name, nil
	}
	return "", fmt.Errorf("cannot infer the SNMP syntax of %T", v)
}

func (vb *VarBind) value() (asn1value.Value, error) {
	syntax, v := vb.Syntax, vb.Value
	if v == nil {
		v = asn1value.Null{}
	}
	if syntax == "" {
		var err error
		if syntax, err = syntaxOf(v); err != nil {
			return nil, err
		}
	}
	return asn1value.NewSequence().
		Set("name", vb.OID).
		Set("value", &asn1value.Open{Type: syntax, Value: v}), nil
}

func getInt(seq *asn1value.Sequence, name string) int64 {
	v, _ := seq.Get(name)
	n, _ := v.(asn1value.Integer)
	return int64(n)
}

func messageFrom(v asn1value.Value) (*Message, error) {
	seq, ok := v.(*asn1value.Sequence)
	if !ok {
		return nil, fmt.Errorf("message is %T", v)
	}
	msg := &Message{Version: getInt(seq, "version")}
	if c, ok := seq.Get("community"); ok {
		s, _ := c.(asn1value.OctetString)
		msg.Community = string(s)
	}
	data, _ := seq.Get("data")
	choice, ok := data.(*asn1value.Choice)
	if !ok {
		return nil, fmt.Errorf("message data is %T", data)
	}
	body, ok := choice.Value.(*asn1value.Sequence)
	if !ok {
		return nil, fmt.Errorf("PDU %q is %T", choice.ID, choice.Value)
	}
	pdu := PDU{Type: PDUType(choice.ID)}
	switch pdu.Type {
	case TRAP:
		trap := &Trap{
			GenericTrap:  getInt(body, "generic-trap"),
			SpecificTrap: getInt(body, "specific-trap"),
			TimeStamp:    getInt(body, "time-stamp"),
		}
		if e, ok := body.Get("enterprise"); ok {
			trap.Enterprise, _ = e.(asn1value.OID)
		}
		if a, ok := body.Get("agent-addr"); ok {
			addr, _ := a.(asn1value.OctetString)
			trap.AgentAddr = []byte(addr)
		}
		pdu.Trap = trap
	case GET_BULK:
		pdu.RequestID = getInt(body, "request-id")
		pdu.ErrorStatus = getInt(body, "non-repeaters")
		pdu.ErrorIndex = getInt(body, "max-repetitions")
	default:
		pdu.RequestID = getInt(body, "request-id")
		pdu.ErrorStatus = getInt(body, "error-status")
		pdu.ErrorIndex = getInt(body, "error-index")
	}
	bindings, _ := body.Get("variable-bindings")
	list, _ := bindings.(asn1value.List)
	for _, item := range list {
		vb, err := varBindFrom(item)
		if err != nil {
			return nil, err
		}
		pdu.VarBinds = append(pdu.VarBinds, vb)
	}
	msg.PDU = pdu
	return msg, nil
}

func varBindFrom(v asn1value.Value) (VarBind, error) {
	seq, ok := v.(*asn1value.Sequence)
	if !ok {
		return VarBind{}, fmt.Errorf("variable binding is %T", v)
	}
	var vb VarBind
	if name, ok := seq.Get("name"); ok {
		vb.OID, _ = name.(asn1value.OID)
	}
	value, _ := seq.Get("value")
	switch x := value.(type) {
	case *asn1value.Open:
		vb.Syntax, vb.Value = x.Type, x.Value
	default:
		vb.Value = value
	}
	return vb, nil
}
