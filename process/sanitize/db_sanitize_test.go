package sanitize

import "testing"

func TestTableNames(t *testing.T) {
	valid, invalid := TableNames(" regions, price_updates ,,users;drop, 9bad")
	if len(valid) != 2 || valid[0] != "regions" || valid[1] != "price_updates" {
		t.Fatalf("unexpected valid names %v", valid)
	}
	if len(invalid) != 2 {
		t.Fatalf("expected 2 invalid names got %v", invalid)
	}
}

func TestTruncateStatement(t *testing.T) {
	got := TruncateStatement([]string{"regions", "menu_images"})
	want := `TRUNCATE TABLE "regions", "menu_images" RESTART IDENTITY CASCADE`
	if got != want {
		t.Fatalf("expected %s got %s", want, got)
	}
}
