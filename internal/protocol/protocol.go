package protocol

import "encoding/json"

const Version = "1.0"

const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeCatalog = "CATALOG"
	TypeAct     = "ACT"
	TypeState   = "STATE"
)

type BaseMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

func DecodeBase(b []byte) (BaseMsg, error) {
	var m BaseMsg
	err := json.Unmarshal(b, &m)
	return m, err
}
