package domain

import (
	"math"
	"testing"

	"gorm.io/datatypes"
)

func TestComputeTotals(t *testing.T) {
	inv := Invoice{
		TaxRate: 0.08,
		LineItems: datatypes.JSONSlice[LineItem]{
			{Description: "Consulting", Quantity: 10, UnitPrice: 8},
			{Description: "Hosting", Quantity: 1, UnitPrice: 20},
		},
	}
	inv.ComputeTotals()

	if inv.Subtotal != 100 {
		t.Fatalf("subtotal = %v, want 100", inv.Subtotal)
	}
	if inv.TaxAmount != 8 {
		t.Fatalf("tax amount = %v, want 8", inv.TaxAmount)
	}
	if inv.Total != 108 {
		t.Fatalf("total = %v, want 108", inv.Total)
	}
	if inv.LineItems[0].Amount != 80 || inv.LineItems[1].Amount != 20 {
		t.Fatalf("line amounts = %v, %v", inv.LineItems[0].Amount, inv.LineItems[1].Amount)
	}
}

func TestComputeTotalsEmpty(t *testing.T) {
	inv := Invoice{TaxRate: 0.1}
	inv.ComputeTotals()
	if inv.Subtotal != 0 || inv.TaxAmount != 0 || inv.Total != 0 {
		t.Fatalf("totals = %v/%v/%v, want zeros", inv.Subtotal, inv.TaxAmount, inv.Total)
	}
}

func TestComputeTotalsInvariant(t *testing.T) {
	inv := Invoice{
		TaxRate: 0.0725,
		LineItems: datatypes.JSONSlice[LineItem]{
			{Quantity: 3, UnitPrice: 19.99},
			{Quantity: 0.5, UnitPrice: 120},
		},
	}
	inv.ComputeTotals()
	if math.Abs(inv.Total-(inv.Subtotal+inv.TaxAmount)) > 1e-9 {
		t.Fatalf("total %v != subtotal %v + tax %v", inv.Total, inv.Subtotal, inv.TaxAmount)
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []InvoiceStatus{StatusDraft, StatusActive, StatusPaid, StatusCancelled, StatusOverdue} {
		if !ValidStatus(s) {
			t.Fatalf("ValidStatus(%q) = false", s)
		}
	}
	if ValidStatus("archived") {
		t.Fatal(`ValidStatus("archived") = true`)
	}
	if ValidStatus("") {
		t.Fatal(`ValidStatus("") = true`)
	}
}
