package decoder

import (
	"fmt"

	"firestige.xyz/tracekit/internal/core"
)

// Record type (tag byte) names as used by the device firmware.
var tagNames = map[uint8]string{
	0:  "PPP",
	1:  "376.1",
	2:  "376.2",
	3:  "sampling meter",
	4:  "RS485 channel 1",
	5:  "RS485 channel 2",
	6:  "RS485 channel 3",
	7:  "per-second sampling",
	8:  "freeze table",
	9:  "unknown",
	10: "UART",
	11: "Socket",
	12: "MQTT",
	13: "RS485 channel 4",
	14: "RS485 channel 5",
	15: "RS485 channel 6",
	16: "RS485 channel 7",
	17: "branch monitor",
	18: "battery",
	19: "branch monitor 1",
	20: "branch monitor 2",
	28: "ESAM",
	29: "debug",
}

var portNames = map[uint8]string{
	0:  "NULL",
	1:  "GPRS_CLINT",
	2:  "RS232",
	3:  "RS4851",
	4:  "INFA",
	5:  "ETH_CLINT",
	6:  "RS4852",
	7:  "RS4853",
	8:  "PLC",
	9:  "CY",
	10: "INTE_COMM",
	11: "UART",
	12: "RS4854",
	13: "RS4855",
	14: "RS4856",
	15: "RS4857",
	16: "BRAN_MON",
	17: "BAT",
	18: "EXK",
	19: "BRAN_MON_1",
	20: "BRAN_MON_2",
}

var protocolNames = map[uint8]string{
	0:  "NULL",
	1:  "376.1",
	2:  "OOP",
	3:  "CSG",
	4:  "62056",
	5:  "376.2",
	6:  "645",
	7:  "EDMI",
	8:  "MODBUS",
	9:  "DLMS",
	10: "MQTT_AXDR",
	11: "MQTT_JSON",
}

// TagName returns the display name of a record type.
func TagName(tag uint8) string {
	return lookup(tagNames, tag, "tag")
}

// PortName returns the display name of a port.
func PortName(port uint8) string {
	return lookup(portNames, port, "port")
}

// ProtocolName returns the display name of a protocol.
func ProtocolName(protocol uint8) string {
	return lookup(protocolNames, protocol, "protocol")
}

// DirectionName returns "send" or "receive".
func DirectionName(d core.Direction) string {
	if d == core.DirectionOut {
		return "send"
	}
	return "receive"
}

func lookup(names map[uint8]string, v uint8, kind string) string {
	if name, ok := names[v]; ok {
		return name
	}
	return fmt.Sprintf("unknown %s(%d)", kind, v)
}
