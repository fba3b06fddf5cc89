package similarity

import "github.com/nidhogg/findit/internal/item"

// AttributeWeight is one row of a category's attribute table.
type AttributeWeight struct {
	Name   string
	Weight float64
}

var attributeTables = map[item.Category][]AttributeWeight{
	item.CategoryElectronics: {
		{item.AttrBrand, 0.3},
		{item.AttrModel, 0.3},
		{item.AttrColor, 0.2},
		{item.AttrSerialNumber, 0.2},
	},
	item.CategoryAccessories: {
		{item.AttrBrand, 0.3},
		{item.AttrMaterial, 0.3},
		{item.AttrColor, 0.4},
	},
	item.CategoryClothing: {
		{item.AttrBrand, 0.3},
		{item.AttrSize, 0.2},
		{item.AttrColor, 0.3},
		{item.AttrMaterial, 0.2},
	},
	item.CategoryDocuments: {
		{item.AttrDocumentType, 0.4},
		{item.AttrIssuingAuthority, 0.3},
		{item.AttrNameOnDocument, 0.3},
	},
	item.CategoryBags: {
		{item.AttrBrand, 0.3},
		{item.AttrColor, 0.4},
		{item.AttrMaterial, 0.3},
	},
	item.CategoryOthers: {
		{item.AttrBrand, 0.375},
		{item.AttrColor, 0.375},
		{item.AttrMaterial, 0.25},
	},
}

// AttributeTable returns the weighted attributes compared for a category, or
// nil for an unknown one. The returned slice must not be modified.
func AttributeTable(c item.Category) []AttributeWeight {
	return attributeTables[c]
}

// Attributes compares the category attributes of two items using the table
// of category, which callers take from the query item. It returns the
// weighted total and the unweighted similarity of every attribute present on
// both sides.
func Attributes(category item.Category, query, candidate *item.Item) (float64, map[string]float64) {
	if query == nil || candidate == nil {
		return 0, nil
	}
	table := attributeTables[category]
	if len(table) == 0 {
		return 0, nil
	}
	per := make(map[string]float64, len(table))
	total := 0.0
	for _, row := range table {
		a, b := query.Attr(row.Name), candidate.Attr(row.Name)
		if prepare(a) == "" || prepare(b) == "" {
			continue
		}
		sim := Combined(a, b)
		per[row.Name] = sim
		total += sim * row.Weight
	}
	return clamp01(total), per
}
