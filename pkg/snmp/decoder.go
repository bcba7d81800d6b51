package snmp

import (
	"fmt"
	"io"
	"strings"

	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
)

type VarBindHandler interface {
	Handle(VarBind *VarBind) error
	Flush() error
}

//-------------------------------------

type VarBindHandlerFunc func(VarBind *VarBind) error

func (f VarBindHandlerFunc) Handle(vb *VarBind) error {
	return f(vb)
}
func (f VarBindHandlerFunc) Flush() error {
	return f(nil)
}

//-------------------------------------

// Printer writes one line per binding. Names maps dotted OID prefixes to display names; the
// longest matching prefix is used.
type Printer struct {
	w     io.Writer
	Names map[string]string
}

var _ VarBindHandler = &Printer{}

func NewPrinter(w io.Writer, names map[string]string) *Printer {
	return &Printer{w: w, Names: names}
}

func (printer *Printer) name(oid asn1value.OID) string {
	for n := len(oid); n > 0; n-- {
		name, ok := printer.Names[oid[:n].String()]
		if !ok {
			continue
		}
		if n == len(oid) {
			return name
		}
		tail := make([]string, 0, len(oid)-n)
		for _, arc := range oid[n:] {
			tail = append(tail, fmt.Sprint(arc))
		}
		return name + "." + strings.Join(tail, ".")
	}
	return oid.String()
}

func (printer *Printer) Handle(vb *VarBind) error {
	text, vt, err := DecodeValue(vb)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(printer.w, "             OID: %s Type: %s Value: %s\n", printer.name(vb.OID), vt, text)
	return err
}

func (printer *Printer) Flush() error {
	return nil
}

// Dispatch passes every binding of msg to h, then flushes it.
func Dispatch(msg *Message, h VarBindHandler) error {
	for i := range msg.PDU.VarBinds {
		if err := h.Handle(&msg.PDU.VarBinds[i]); err != nil {
			return err
		}
	}
	return h.Flush()
}
