// Package tables detects and extracts register tables from positioned
// page text.
package tables

import "strings"

// TableType classifies a detected table.
type TableType string

const (
	RegisterMap        TableType = "register_map"
	BitfieldDefinition TableType = "bitfield_definition"
	MemoryMap          TableType = "memory_map"
	Other              TableType = "other"
)

// Title renders the type for human-readable headings,
// e.g. "register_map" becomes "Register Map".
func (t TableType) Title() string {
	words := strings.Split(string(t), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// TableRegion is the page area a detected table occupies.
type TableRegion struct {
	PageNum        int
	X0, Y0, X1, Y1 float64
	Type           TableType
	HeaderKeywords map[string]bool
}

// BitField is one field of a register.
type BitField struct {
	Name        string `json:"name"`
	Bits        string `json:"bits"`
	BitRange    [2]int `json:"bit_range"` // msb, lsb
	Access      string `json:"access"`
	Description string `json:"description"`
	ResetValue  string `json:"reset_value,omitempty"`
}

// Register is one register definition.
type Register struct {
	Name        string     `json:"name"`
	Offset      string     `json:"offset,omitempty"`
	Address     string     `json:"address,omitempty"`
	Width       int        `json:"width"`
	ResetValue  string     `json:"reset_value,omitempty"`
	Access      string     `json:"access"`
	Description string     `json:"description,omitempty"`
	Fields      []BitField `json:"fields,omitempty"`
}

// RegisterTable is the structured form of an extracted table.
type RegisterTable struct {
	Peripheral string     `json:"peripheral"`
	Type       TableType  `json:"table_type"`
	Registers  []Register `json:"registers"`
	Context    string     `json:"context,omitempty"`
}
