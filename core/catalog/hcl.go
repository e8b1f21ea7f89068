// Package catalog - HCL catalog encoding
package catalog

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"fibre-cost/core/determinism"
)

// DecodeHCL parses a catalog written in HCL:
//
//	version  = "2025-q1"
//	currency = "GBP"
//	unit_costs = {
//	  fibre_material_per_m = 8.0
//	}
//	uplifts = {
//	  terrain_type = { rocky = 1.25 }
//	}
func DecodeHCL(data []byte, filename string) (*Catalog, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %s", filename, diags.Error())
	}

	var c Catalog
	if diags := gohcl.DecodeBody(file.Body, nil, &c); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %s", filename, diags.Error())
	}
	return &c, nil
}

// EncodeHCL renders a catalog as HCL with keys in sorted order
func EncodeHCL(c *Catalog) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("version", cty.StringVal(c.Version))
	if c.Currency != "" {
		body.SetAttributeValue("currency", cty.StringVal(c.Currency))
	}
	body.SetAttributeValue("unit_costs", numberObject(c.UnitCosts))

	if len(c.Uplifts) > 0 {
		categories := make(map[string]cty.Value, len(c.Uplifts))
		for _, category := range determinism.SortedKeys(c.Uplifts) {
			categories[category] = numberObject(c.Uplifts[category])
		}
		body.SetAttributeValue("uplifts", cty.ObjectVal(categories))
	}

	return f.Bytes()
}

func numberObject(m map[string]float64) cty.Value {
	if len(m) == 0 {
		return cty.EmptyObjectVal
	}
	attrs := make(map[string]cty.Value, len(m))
	for k, v := range m {
		attrs[k] = cty.NumberFloatVal(v)
	}
	return cty.ObjectVal(attrs)
}
