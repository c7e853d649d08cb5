package engine

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestLoadCSV(t *testing.T) {
	csvContent := []byte(`Region,Category,Supplier,Item,Month,Sales Total,Margin,Sales Qty,Sales Price
North,Toys,Acme,Widget_A,Jan,"1,000.50",100,10,100.05
South,Toys,Acme,Widget_B,Jan,200,20,2,100
North,Games,Zeta,Widget_A,Feb,₹300,30,3,100

`)

	tmpFile, err := os.CreateTemp("", "test_data_*.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(csvContent); err != nil {
		t.Fatal(err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatal(err)
	}

	store, err := Load(tmpFile.Name(), "ignored", nil)
	if err != nil {
		t.Fatal(err)
	}

	// Expect 3 rows (blank trailing line skipped)
	if store.Len() != 3 {
		t.Fatalf("Expected 3 rows, got %d", store.Len())
	}

	if got := store.Amount(SalesTotal, 0); got != 1000.5 {
		t.Errorf("Row 0 Sales Total: Expected 1000.5, got %f", got)
	}
	if got := store.Amount(SalesTotal, 2); got != 300 {
		t.Errorf("Row 2 Sales Total: Expected 300, got %f", got)
	}

	// Dictionary Checks (first-appearance order)
	regions := store.Domain(Region)
	if len(regions) != 2 || regions[0] != "North" || regions[1] != "South" {
		t.Errorf("Unexpected region dictionary %v", regions)
	}
	if len(store.Domain(Item)) != 2 {
		t.Errorf("Expected 2 unique items, got %d", len(store.Domain(Item)))
	}
}

func TestLoadCSVWithByteOrderMark(t *testing.T) {
	csvContent := []byte("\ufeffRegion,Category,Supplier,Item,Month,Sales Total\nNorth,Toys,Acme,Widget_A,Jan,100\n")

	path := filepath.Join(t.TempDir(), "bom.csv")
	if err := os.WriteFile(path, csvContent, 0o644); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	store, err := Load(path, "ignored", slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("Load with BOM: %v", err)
	}
	if got := store.Domain(Region); len(got) != 1 || got[0] != "North" {
		t.Errorf("Unexpected region dictionary %v", got)
	}
	if n := strings.Count(logs.String(), "loading dataset"); n != 1 {
		t.Errorf("Expected one loading log line, got %d:\n%s", n, logs.String())
	}
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.xlsx")

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "Sh1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewSheet("Notes"); err != nil {
		t.Fatal(err)
	}
	rows := [][]any{
		{"Region", "Category", "Supplier", "Item", "Month", "Sales Total", "Margin"},
		{"North", "Toys", "Acme", "Widget_A", "Jan", 100, 10},
		{"South", "Games", "Zeta", "Widget_B", "Feb", 200, 25},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sh1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	store, err := Load(path, "Sh1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 {
		t.Fatalf("Expected 2 rows, got %d", store.Len())
	}
	if !store.Has(Margin) || store.Has(SalesQty) {
		t.Errorf("Unexpected measure presence: margin=%v qty=%v", store.Has(Margin), store.Has(SalesQty))
	}
	if got := store.Amount(Margin, 1); got != 25 {
		t.Errorf("Row 1 Margin: Expected 25, got %f", got)
	}

	// Wrong sheet lists the alternatives
	_, err = Load(path, "sh1", nil)
	var sheetErr *SheetNotFoundError
	if !errors.As(err, &sheetErr) {
		t.Fatalf("Expected SheetNotFoundError, got %v", err)
	}
	if len(sheetErr.Available) != 2 || sheetErr.Available[0] != "Sh1" || sheetErr.Available[1] != "Notes" {
		t.Errorf("Unexpected available sheets %v", sheetErr.Available)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.xlsx"), "Sh1", nil)
	if !errors.Is(err, ErrDatasetUnavailable) {
		t.Fatalf("Expected ErrDatasetUnavailable, got %v", err)
	}
}

func TestLoadMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte("Region,Category,Item\nNorth,Toys,A\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path, "", nil)
	var colErr *MissingColumnError
	if !errors.As(err, &colErr) {
		t.Fatalf("Expected MissingColumnError, got %v", err)
	}
	if len(colErr.Missing) != 2 || colErr.Missing[0] != "Supplier" || colErr.Missing[1] != "Month" {
		t.Errorf("Unexpected missing columns %v", colErr.Missing)
	}
}

func TestLoadEmptySheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(path, []byte("\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, "", nil); !errors.Is(err, ErrEmptySheet) {
		t.Fatalf("Expected ErrEmptySheet, got %v", err)
	}
}

func TestParseAmount(t *testing.T) {
	cases := map[string]float64{
		"123.45":    123.45,
		"1,234":     1234,
		"₹ 99":      99,
		"(10.5)":    -10.5,
		"":          0,
		"n/a":       0,
		"-7":        -7,
		"$1,000.25": 1000.25,
	}
	for in, want := range cases {
		if got := parseAmount(in); got != want {
			t.Errorf("parseAmount(%q) = %v, want %v", in, got, want)
		}
	}
}
