package catalogs

// Read-only query surface used by the simulation engine. All lookups are by string id and never
// mutate the catalogs, so one *Catalogs can be shared by every session.

func (c *Catalogs) Machine(id string) (MachineDef, bool) {
	if c == nil || id == "" {
		return MachineDef{}, false
	}
	d, ok := c.Machines.ByID[id]
	return d, ok
}

// Recipe returns the recipe a machine applies to an input item type.
// When several recipes share the same (machine, input) pair the lowest recipe id wins.
func (c *Catalogs) Recipe(machineID, inputItemType string) (RecipeDef, bool) {
	if c == nil {
		return RecipeDef{}, false
	}
	rs := c.Recipes.byMachineInput[machineID][inputItemType]
	if len(rs) == 0 {
		return RecipeDef{}, false
	}
	return rs[0], true
}

func (c *Catalogs) RecipeByID(id string) (RecipeDef, bool) {
	if c == nil || id == "" {
		return RecipeDef{}, false
	}
	r, ok := c.Recipes.ByID[id]
	return r, ok
}

// RecipesFor lists the recipes of a machine sorted by recipe id.
func (c *Catalogs) RecipesFor(machineID string) []RecipeDef {
	if c == nil {
		return nil
	}
	var out []RecipeDef
	for _, id := range sortedKeys(c.Recipes.ByID) {
		if r := c.Recipes.ByID[id]; r.Machine == machineID {
			out = append(out, r)
		}
	}
	return out
}

// SellValue is 0 for unknown item types.
func (c *Catalogs) SellValue(itemType string) int {
	if c == nil {
		return 0
	}
	return c.Items.Defs[itemType].SellValue
}

func (c *Catalogs) WasteCrate(id string) (WasteCrateDef, bool) {
	if c == nil || id == "" {
		return WasteCrateDef{}, false
	}
	d, ok := c.WasteCrates.ByID[id]
	return d, ok
}
