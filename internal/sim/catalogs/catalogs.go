package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Machine kinds. A cell without a machine id is a blank cell.
const (
	KindConveyor  = "CONVEYOR"
	KindSorting   = "SORTING"
	KindProcessor = "PROCESSOR"
	KindSeller    = "SELLER"
	KindSpawner   = "SPAWNER"
)

type Catalogs struct {
	Machines    MachineCatalog
	Items       ItemCatalog
	Recipes     RecipeCatalog
	WasteCrates WasteCrateCatalog
}

type MachineCatalog struct {
	ByID   map[string]MachineDef
	Digest string
}

type MachineDef struct {
	ID              string  `json:"id"`
	Kind            string  `json:"kind"` // "CONVEYOR","SORTING","PROCESSOR","SELLER","SPAWNER"
	DisplayName     string  `json:"display_name,omitempty"`
	BaseProcessTime float64 `json:"base_process_time"`

	// Optional per-machine override of the tuning waiting timeout (processors only).
	WaitingTimeoutSeconds float64 `json:"waiting_timeout_seconds,omitempty"`
	// Crate loaded into spawners placed without an explicit crate.
	DefaultWasteCrate string `json:"default_waste_crate,omitempty"`
}

type ItemCatalog struct {
	Palette []string
	Defs    map[string]ItemDef
	Digest  string
}

type ItemDef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	SellValue   int    `json:"sell_value"`
}

type RecipeCatalog struct {
	ByID map[string]RecipeDef
	// machine id -> input item -> recipes sorted by recipe id
	byMachineInput map[string]map[string][]RecipeDef
	Digest         string
}

type RecipeDef struct {
	RecipeID          string      `json:"recipe_id"`
	Machine           string      `json:"machine"`
	Input             string      `json:"input"`
	Outputs           []ItemCount `json:"outputs"`
	ProcessMultiplier float64     `json:"process_multiplier"`
}

type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type WasteCrateCatalog struct {
	ByID   map[string]WasteCrateDef
	Digest string
}

type WasteCrateDef struct {
	ID       string      `json:"id"`
	Contents []ItemCount `json:"contents"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadMachines(filepath.Join(configDir, "machines.json"), &c.Machines); err != nil {
		return nil, err
	}
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadRecipes(filepath.Join(configDir, "recipes.json"), &c.Recipes); err != nil {
		return nil, err
	}
	if err := loadWasteCrates(filepath.Join(configDir, "waste_crates.json"), &c.WasteCrates); err != nil {
		return nil, err
	}
	if err := c.crossCheck(); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func readValidated(path, schema string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := validateDoc(schema, raw); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return raw, nil
}

func loadMachines(path string, out *MachineCatalog) error {
	raw, err := readValidated(path, "machines.schema.json")
	if err != nil {
		return err
	}
	var defs []MachineDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("machines.json: %w", err)
	}
	if err := out.set(defs); err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	return nil
}

func (out *MachineCatalog) set(defs []MachineDef) error {
	out.ByID = map[string]MachineDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("machines.json: empty id")
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("machines.json: duplicate id %q", d.ID)
		}
		switch d.Kind {
		case KindConveyor, KindSorting, KindSeller:
		case KindProcessor, KindSpawner:
			if d.BaseProcessTime <= 0 {
				return fmt.Errorf("machines.json: %q: invalid base_process_time=%v", d.ID, d.BaseProcessTime)
			}
		default:
			return fmt.Errorf("machines.json: %q: unknown kind %q", d.ID, d.Kind)
		}
		out.ByID[d.ID] = d
	}
	return nil
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := readValidated(path, "items.schema.json")
	if err != nil {
		return err
	}
	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	if err := out.set(defs); err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	return nil
}

func (out *ItemCatalog) set(defs []ItemDef) error {
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		out.Defs[d.ID] = d
	}
	out.Palette = sortedKeys(out.Defs)
	return nil
}

func loadRecipes(path string, out *RecipeCatalog) error {
	raw, err := readValidated(path, "recipes.schema.json")
	if err != nil {
		return err
	}
	var defs []RecipeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("recipes.json: %w", err)
	}
	if err := out.set(defs); err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	return nil
}

func (out *RecipeCatalog) set(defs []RecipeDef) error {
	out.ByID = map[string]RecipeDef{}
	for _, r := range defs {
		if r.RecipeID == "" {
			return fmt.Errorf("recipes.json: empty recipe_id")
		}
		if _, dup := out.ByID[r.RecipeID]; dup {
			return fmt.Errorf("recipes.json: duplicate recipe_id %q", r.RecipeID)
		}
		out.ByID[r.RecipeID] = r
	}
	return out.index()
}

func (rc *RecipeCatalog) index() error {
	ids := sortedKeys(rc.ByID)
	rc.byMachineInput = map[string]map[string][]RecipeDef{}
	for _, id := range ids {
		r := rc.ByID[id]
		if strings.TrimSpace(r.Machine) == "" {
			return fmt.Errorf("recipe %q: missing machine", r.RecipeID)
		}
		if strings.TrimSpace(r.Input) == "" {
			return fmt.Errorf("recipe %q: missing input", r.RecipeID)
		}
		if len(r.Outputs) == 0 {
			return fmt.Errorf("recipe %q: missing outputs", r.RecipeID)
		}
		for _, o := range r.Outputs {
			if o.Item == "" || o.Count <= 0 {
				return fmt.Errorf("recipe %q: invalid output %+v", r.RecipeID, o)
			}
		}
		if r.ProcessMultiplier <= 0 {
			return fmt.Errorf("recipe %q: invalid process_multiplier=%v", r.RecipeID, r.ProcessMultiplier)
		}
		byInput := rc.byMachineInput[r.Machine]
		if byInput == nil {
			byInput = map[string][]RecipeDef{}
			rc.byMachineInput[r.Machine] = byInput
		}
		byInput[r.Input] = append(byInput[r.Input], r)
	}
	return nil
}

func loadWasteCrates(path string, out *WasteCrateCatalog) error {
	raw, err := readValidated(path, "waste_crates.schema.json")
	if err != nil {
		return err
	}
	var defs []WasteCrateDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("waste_crates.json: %w", err)
	}
	if err := out.set(defs); err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	return nil
}

func (out *WasteCrateCatalog) set(defs []WasteCrateDef) error {
	out.ByID = map[string]WasteCrateDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("waste_crates.json: empty id")
		}
		for _, c := range d.Contents {
			if c.Count < 0 {
				return fmt.Errorf("waste crate %q: negative count for %q", d.ID, c.Item)
			}
		}
		out.ByID[d.ID] = d
	}
	return nil
}

// FromDefs builds catalogs from in-memory definitions, applying the same checks as Load.
// Digests are computed over the JSON encoding of the inputs.
func FromDefs(machines []MachineDef, items []ItemDef, recipes []RecipeDef, crates []WasteCrateDef) (*Catalogs, error) {
	var c Catalogs
	if err := c.Machines.set(machines); err != nil {
		return nil, err
	}
	if err := c.Items.set(items); err != nil {
		return nil, err
	}
	if err := c.Recipes.set(recipes); err != nil {
		return nil, err
	}
	if err := c.WasteCrates.set(crates); err != nil {
		return nil, err
	}
	digest := func(v any) string {
		b, _ := json.Marshal(v)
		return sha256Hex(b)
	}
	c.Machines.Digest = digest(machines)
	c.Items.Digest = digest(items)
	c.Recipes.Digest = digest(recipes)
	c.WasteCrates.Digest = digest(crates)
	if err := c.crossCheck(); err != nil {
		return nil, err
	}
	return &c, nil
}

// crossCheck verifies references between catalogs.
func (c *Catalogs) crossCheck() error {
	for _, id := range sortedKeys(c.Recipes.ByID) {
		r := c.Recipes.ByID[id]
		m, ok := c.Machines.ByID[r.Machine]
		if !ok {
			return fmt.Errorf("recipe %q: unknown machine %q", id, r.Machine)
		}
		if m.Kind != KindProcessor {
			return fmt.Errorf("recipe %q: machine %q is %s, not %s", id, r.Machine, m.Kind, KindProcessor)
		}
	}
	for _, id := range sortedKeys(c.Machines.ByID) {
		m := c.Machines.ByID[id]
		if m.DefaultWasteCrate == "" {
			continue
		}
		if _, ok := c.WasteCrates.ByID[m.DefaultWasteCrate]; !ok {
			return fmt.Errorf("machine %q: unknown default_waste_crate %q", id, m.DefaultWasteCrate)
		}
	}
	return nil
}

// Digest combines all per-file digests; it changes whenever any rule file changes.
func (c *Catalogs) Digest() string {
	var b bytes.Buffer
	for _, d := range []string{c.Machines.Digest, c.Items.Digest, c.Recipes.Digest, c.WasteCrates.Digest} {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	return sha256Hex(b.Bytes())
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
