package offsets

import "testing"

func TestForVersionExactAndFallback(t *testing.T) {
	cases := []struct {
		version string
		wantOK  bool
		field   string
		want    int64
	}{
		{"2019", true, MonoTypeDefFields, 0x90},
		{"2021", true, MonoTypeDefFields, 0x98},
		{"2020", true, MonoTypeDefFields, 0x90}, // falls back to 2019
		{"2022", true, MonoTypeDefFields, 0x98},
		{"2018", false, "", 0},
	}

	for _, c := range cases {
		table, ok := Mono.ForVersion(c.version)
		if ok != c.wantOK {
			t.Fatalf("ForVersion(%q) ok = %v, want %v", c.version, ok, c.wantOK)
		}
		if !ok {
			continue
		}
		got, err := table.Field(c.field)
		if err != nil {
			t.Fatalf("Field(%q): %v", c.field, err)
		}
		if got != c.want {
			t.Fatalf("ForVersion(%q).Field(%q) = %#x, want %#x", c.version, c.field, got, c.want)
		}
	}
}

func TestIl2cppTypeInfoTableOffsetPinned(t *testing.T) {
	table, ok := Il2cpp.ForVersion("2021")
	if !ok {
		t.Fatal("expected 2021 table")
	}
	got, err := table.Field(Il2cppGlobalTypeInfoTable)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x24360 {
		t.Fatalf("type info table offset = %#x, want 0x24360", got)
	}
}

func TestFieldUnknownNameErrors(t *testing.T) {
	table, _ := Mono.ForVersion("2021")
	if _, err := table.Field("does_not_exist"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
