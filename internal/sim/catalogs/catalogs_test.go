package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Configs(t *testing.T) {
	cats, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}

	m, ok := cats.Machine("shredder")
	if !ok || m.Kind != KindProcessor || m.BaseProcessTime != 3.0 {
		t.Fatalf("shredder: ok=%v def=%+v", ok, m)
	}
	r, ok := cats.Recipe("shredder", "can")
	if !ok || r.RecipeID != "shred_can" || r.ProcessMultiplier != 2.0 {
		t.Fatalf("shred can: ok=%v recipe=%+v", ok, r)
	}
	if _, ok := cats.Recipe("shredder", "steelBar"); ok {
		t.Fatalf("unexpected recipe for steelBar")
	}
	if got := cats.SellValue("can"); got != 25 {
		t.Fatalf("sell can: got %d want 25", got)
	}
	if got := cats.SellValue("unobtainium"); got != 0 {
		t.Fatalf("sell unknown: got %d want 0", got)
	}
	wc, ok := cats.WasteCrate("mixed_crate")
	if !ok || len(wc.Contents) != 2 {
		t.Fatalf("mixed_crate: ok=%v def=%+v", ok, wc)
	}
	if cats.Digest() == "" || cats.Machines.Digest == "" {
		t.Fatalf("missing digests")
	}
}

func TestLoad_SchemaRejectsUnknownKind(t *testing.T) {
	dir := copyConfigs(t)
	writeFile(t, filepath.Join(dir, "machines.json"), `[{"id":"oven","kind":"TOASTER","base_process_time":1}]`)

	_, err := Load(dir)
	if err == nil {
		t.Fatalf("expected schema error")
	}
	if !strings.Contains(err.Error(), "machines.json") {
		t.Fatalf("error should name the file: %v", err)
	}
}

func TestLoad_RecipeForUnknownMachine(t *testing.T) {
	dir := copyConfigs(t)
	writeFile(t, filepath.Join(dir, "recipes.json"), `[{"recipe_id":"r1","machine":"nope","input":"can","outputs":[{"item":"metal","count":1}],"process_multiplier":1}]`)

	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "unknown machine") {
		t.Fatalf("expected unknown machine error, got %v", err)
	}
}

func TestRecipe_LowestIDWins(t *testing.T) {
	cats, err := FromDefs(
		[]MachineDef{{ID: "press", Kind: KindProcessor, BaseProcessTime: 1}},
		nil,
		[]RecipeDef{
			{RecipeID: "b", Machine: "press", Input: "can", Outputs: []ItemCount{{Item: "metal", Count: 1}}, ProcessMultiplier: 1},
			{RecipeID: "a", Machine: "press", Input: "can", Outputs: []ItemCount{{Item: "trash", Count: 1}}, ProcessMultiplier: 1},
		},
		nil,
	)
	if err != nil {
		t.Fatalf("from defs: %v", err)
	}
	r, ok := cats.Recipe("press", "can")
	if !ok || r.RecipeID != "a" {
		t.Fatalf("got %+v ok=%v, want recipe a", r, ok)
	}
	if got := cats.RecipesFor("press"); len(got) != 2 || got[0].RecipeID != "a" {
		t.Fatalf("recipes for press: %+v", got)
	}
}

func TestFromDefs_RejectsZeroMultiplier(t *testing.T) {
	_, err := FromDefs(
		[]MachineDef{{ID: "press", Kind: KindProcessor, BaseProcessTime: 1}},
		nil,
		[]RecipeDef{{RecipeID: "a", Machine: "press", Input: "can", Outputs: []ItemCount{{Item: "metal", Count: 1}}}},
		nil,
	)
	if err == nil {
		t.Fatalf("expected error for zero process_multiplier")
	}
}

func copyConfigs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"machines.json", "items.json", "recipes.json", "waste_crates.json"} {
		b, err := os.ReadFile(filepath.Join("../../../configs", name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		writeFile(t, filepath.Join(dir, name), string(b))
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
