package tables

import (
	"testing"
)

func TestParseBitNotation(t *testing.T) {
	tests := []struct {
		in   string
		want [2]int
		ok   bool
	}{
		{"[31:24]", [2]int{31, 24}, true},
		{"31:24", [2]int{31, 24}, true},
		{"[15]", [2]int{15, 15}, true},
		{"0", [2]int{0, 0}, true},
		{" 7 : 4 ", [2]int{7, 4}, true},
		{"", [2]int{}, false},
		{"reserved", [2]int{}, false},
	}
	for _, tt := range tests {
		got, ok := parseBitNotation(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseBitNotation(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseWidth(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"32", 32},
		{"16-bit", 16},
		{"8 bits", 8},
		{"", 32},
		{"word", 32},
	}
	for _, tt := range tests {
		if got := parseWidth(tt.in); got != tt.want {
			t.Errorf("parseWidth(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestExtractNames(t *testing.T) {
	if got := extractPeripheralName("14.3 UART0 Register Map"); got != "UART0" {
		t.Errorf("extractPeripheralName = %q, want UART0", got)
	}
	if got := extractPeripheralName("0x4000 some lowercase text"); got != "Unknown" {
		t.Errorf("extractPeripheralName = %q, want Unknown", got)
	}
	if got := extractRegisterName("The MCR register controls the module"); got != "MCR" {
		t.Errorf("extractRegisterName = %q, want MCR", got)
	}
	if got := extractRegisterName("no abbreviation here"); got != "Unknown" {
		t.Errorf("extractRegisterName = %q, want Unknown", got)
	}
}

func TestParseRegisterGrid(t *testing.T) {
	grid := [][]string{
		{"Offset", "Name", "Width", "Reset", "Access", "Description"},
		{"0x00", "MCR", "32", "0x5980000F", "RW", "Module Configuration Register"},
		{"0x04", "CTRL1", "32", "0x00000000", "RW", "Control 1 Register"},
		{"", "", "", "", "", ""}, // blank row skipped
	}

	table, ok := ParseGrid(grid, RegisterMap, "16.4 FlexCAN Memory Map")
	if !ok {
		t.Fatal("ParseGrid returned false")
	}
	if table.Peripheral != "FlexCAN" {
		t.Errorf("Peripheral = %q, want FlexCAN", table.Peripheral)
	}
	if table.Type != RegisterMap {
		t.Errorf("Type = %q, want %q", table.Type, RegisterMap)
	}
	if len(table.Registers) != 2 {
		t.Fatalf("got %d registers, want 2", len(table.Registers))
	}

	mcr := table.Registers[0]
	if mcr.Name != "MCR" {
		t.Errorf("Name = %q, want MCR", mcr.Name)
	}
	if mcr.Offset != "0x00" {
		t.Errorf("Offset = %q, want 0x00", mcr.Offset)
	}
	if mcr.Width != 32 {
		t.Errorf("Width = %d, want 32", mcr.Width)
	}
	if mcr.ResetValue != "0x5980000F" {
		t.Errorf("ResetValue = %q, want 0x5980000F", mcr.ResetValue)
	}
	if mcr.Access != "RW" {
		t.Errorf("Access = %q, want RW", mcr.Access)
	}
}

func TestParseRegisterGridTitleRow(t *testing.T) {
	// Header search skips a title row ahead of the real header.
	grid := [][]string{
		{"Table 14-2. UART peripheral", "", "", ""},
		{"Offset", "Name", "Access", "Description"},
		{"0x00", "DR", "RW", "Data register"},
	}

	table, ok := ParseGrid(grid, RegisterMap, "UART0")
	if !ok {
		t.Fatal("ParseGrid returned false")
	}
	if len(table.Registers) != 1 {
		t.Fatalf("got %d registers, want 1", len(table.Registers))
	}
	if table.Registers[0].Name != "DR" {
		t.Errorf("Name = %q, want DR", table.Registers[0].Name)
	}
}

func TestParseRegisterGridAccessDefault(t *testing.T) {
	grid := [][]string{
		{"Offset", "Name", "Description"},
		{"0x00", "CTRL", "Control register"},
	}
	table, _ := ParseGrid(grid, RegisterMap, "TIMER0")
	if table.Registers[0].Access != "RW" {
		t.Errorf("Access = %q, want default RW", table.Registers[0].Access)
	}
	if table.Registers[0].Width != 32 {
		t.Errorf("Width = %d, want default 32", table.Registers[0].Width)
	}
}

func TestParseBitfieldGrid(t *testing.T) {
	grid := [][]string{
		{"Bits", "Field", "Access", "Reset", "Description"},
		{"[31:16]", "DIV", "RW", "0x10", "Baud rate divider"},
		{"[1]", "PE", "RW", "0", "Parity enable"},
		{"", "RESERVED", "RO", "", "no bit notation"}, // unparseable bits skipped
	}

	table, ok := ParseGrid(grid, BitfieldDefinition, "UART0 CR register layout")
	if !ok {
		t.Fatal("ParseGrid returned false")
	}
	if len(table.Registers) != 1 {
		t.Fatalf("got %d registers, want 1", len(table.Registers))
	}

	reg := table.Registers[0]
	if reg.Name != "CR" {
		t.Errorf("register Name = %q, want CR", reg.Name)
	}
	if len(reg.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(reg.Fields))
	}

	div := reg.Fields[0]
	if div.Name != "DIV" {
		t.Errorf("field Name = %q, want DIV", div.Name)
	}
	if div.BitRange != [2]int{31, 16} {
		t.Errorf("BitRange = %v, want [31 16]", div.BitRange)
	}
	if reg.Fields[1].BitRange != [2]int{1, 1} {
		t.Errorf("single-bit BitRange = %v, want [1 1]", reg.Fields[1].BitRange)
	}
}

func TestParseGridRejectsOther(t *testing.T) {
	grid := [][]string{
		{"a", "b"},
		{"c", "d"},
	}
	if _, ok := ParseGrid(grid, Other, ""); ok {
		t.Error("ParseGrid should reject tables classified as other")
	}
	if _, ok := ParseGrid(grid[:1], RegisterMap, ""); ok {
		t.Error("ParseGrid should reject single-row grids")
	}
}

func TestExtractRegisterTableFromPage(t *testing.T) {
	page := tablePage(
		headerRow(60, "9.2", "SPI0", "Register", "Map"),
		headerRow(100, "Offset", "Name", "Width", "Access", "Description"),
		headerRow(120, "0x00", "CR", "32", "RW", "Control"),
		headerRow(140, "0x04", "SR", "32", "RO", "Status"),
	)

	d := New(Config{})
	regions := d.DetectRegisterTables(page)
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}

	context := d.TableContext(page, regions[0], DefaultContextLines)
	table, ok := ExtractRegisterTable(page, regions[0], context)
	if !ok {
		t.Fatal("ExtractRegisterTable returned false")
	}
	if table.Peripheral != "SPI0" {
		t.Errorf("Peripheral = %q, want SPI0", table.Peripheral)
	}
	if len(table.Registers) != 2 {
		t.Fatalf("got %d registers, want 2", len(table.Registers))
	}
	if table.Registers[0].Name != "CR" || table.Registers[1].Name != "SR" {
		t.Errorf("register names = %q, %q; want CR, SR",
			table.Registers[0].Name, table.Registers[1].Name)
	}
}
