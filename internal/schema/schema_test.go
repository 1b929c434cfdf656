package schema

import "testing"

func TestDeclared_EmbeddingDimension(t *testing.T) {
	cols := Declared(768)

	var embedding *Column
	for i := range cols {
		if cols[i].Name == "embedding" {
			embedding = &cols[i]
		}
	}
	if embedding == nil {
		t.Fatal("expected an embedding column in Declared()")
	}
	if embedding.Type != "vector(768)" {
		t.Errorf("expected vector(768), got %q", embedding.Type)
	}
}

func TestNormalizeType(t *testing.T) {
	cases := []struct{ a, b string }{
		{"text", "character varying"},
		{"integer", "int4"},
		{"integer", "serial"},
		{"jsonb", "jsonb"},
	}
	for _, c := range cases {
		if !typesEquivalent(c.a, c.b) {
			t.Errorf("expected %q and %q to be equivalent", c.a, c.b)
		}
	}
}

func TestTypesEquivalent_Mismatch(t *testing.T) {
	if typesEquivalent("vector(768)", "vector(384)") {
		t.Error("expected vector(768) and vector(384) to be reported as a mismatch")
	}
}

func TestAlterStatement_Embedding(t *testing.T) {
	stmt := alterStatement(Mismatch{Column: "embedding", Declared: "vector(768)", Live: "vector(384)"})
	want := `ALTER TABLE arch_items ALTER COLUMN embedding TYPE vector(768) USING NULL::vector(768)`
	if stmt != want {
		t.Errorf("got %q, want %q", stmt, want)
	}
}

func TestMigrate_MissingSkipped(t *testing.T) {
	applied, err := (&Migrator{}).Migrate(nil, []Mismatch{{Column: "newcol", Declared: "text", Live: "<missing>"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected missing columns to be skipped, got %v", applied)
	}
}
