package parse

import "testing"

func TestExtractAmount(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		satang int64
		found  bool
	}{
		{"picks largest token", "TOTAL 1,250.00 SUBTOTAL 1,000.00", 125000, true},
		{"plain integers", "ข้าว 40 น้ำ 15 รวม 55", 5500, true},
		{"single value", "350.25", 35025, true},
		{"comma grouping beats fragments", "VAT 87.50 TOTAL 12,500", 1250000, true},
		{"tie keeps first", "100.00 100.00", 10000, true},
		{"no digits", "ขอบคุณที่ใช้บริการ", 0, false},
		{"empty", "", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, found := ExtractAmount(tc.in)
			if found != tc.found {
				t.Fatalf("expected found=%v, got %v", tc.found, found)
			}
			if found && m.Satang != tc.satang {
				t.Fatalf("expected %d satang, got %d", tc.satang, m.Satang)
			}
		})
	}
}

func TestExtractAmountDeterministic(t *testing.T) {
	const text = "7-ELEVEN\nน้ำดื่ม 10.00\nขนม 25.50\nTOTAL 35.50"
	first, ok := ExtractAmount(text)
	if !ok {
		t.Fatalf("expected an amount")
	}
	for i := 0; i < 10; i++ {
		m, ok := ExtractAmount(text)
		if !ok || m != first {
			t.Fatalf("run %d: expected %v, got %v (ok=%v)", i, first, m, ok)
		}
	}
}

func TestVendor(t *testing.T) {
	if v := Vendor("7-ELEVEN สาขาสุขุมวิท\nTOTAL 120.00"); v != "7-ELEVEN สาขาสุขุมวิท" {
		t.Fatalf("unexpected vendor %q", v)
	}
	// Digit-dominated first lines are skipped.
	if v := Vendor("20/08/2026 14:02\nMAKRO\n1,250.00"); v != "MAKRO" {
		t.Fatalf("unexpected vendor %q", v)
	}
	if v := Vendor("12345\n67890"); v != "ไม่ระบุ" {
		t.Fatalf("expected placeholder, got %q", v)
	}
}
