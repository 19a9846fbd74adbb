package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// hclMetafile is the block layout of an .hcl metafile:
//
//	constants { npm_registry = "..." }
//	template  { id = "universal" ... }
//	platform  { os = "win" ... }
//
// Each block body is read as plain attributes so that the same record
// validation applies to every format.
type hclMetafile struct {
	Constants *hclRecord  `hcl:"constants,block"`
	Packages  []hclRecord `hcl:"package,block"`
	Templates []hclRecord `hcl:"template,block"`
	Platforms []hclRecord `hcl:"platform,block"`
	Editors   []hclRecord `hcl:"editor,block"`
}

type hclRecord struct {
	Body hcl.Body `hcl:",remain"`
}

func decodeHCL(data []byte, filename string) (*rawMetafile, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %w", diags)
	}

	var parsed hclMetafile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %w", diags)
	}

	raw := &rawMetafile{}
	var err error
	if parsed.Constants != nil {
		if raw.Constants, err = parsed.Constants.record(data); err != nil {
			return nil, err
		}
	}
	lists := []struct {
		src []hclRecord
		dst *[]Record
	}{
		{parsed.Packages, &raw.Packages},
		{parsed.Templates, &raw.Templates},
		{parsed.Platforms, &raw.Platforms},
		{parsed.Editors, &raw.Editors},
	}
	for _, l := range lists {
		for _, b := range l.src {
			r, err := b.record(data)
			if err != nil {
				return nil, err
			}
			*l.dst = append(*l.dst, r)
		}
	}
	return raw, nil
}

// record reads the block attributes. A number literal is taken from the
// source text, since cty keeps numbers as floats.
func (b hclRecord) record(src []byte) (Record, error) {
	attrs, diags := b.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to read HCL block: %w", diags)
	}
	r := make(Record, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate %s: %w", name, diags)
		}
		if lit, ok := attr.Expr.(*hclsyntax.LiteralValueExpr); ok && !val.IsNull() && val.Type().Equals(cty.Number) {
			r[name] = Number(lit.SrcRange.SliceBytes(src))
			continue
		}
		v, err := ctyToGo(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", attr.NameRange, err)
		}
		r[name] = v
	}
	return r, nil
}

// ctyToGo converts to the same plain values the YAML and JSON decoders
// produce, so null stays nil and the key stays present. Numbers nested in
// lists or objects have no literal text at hand and are written exactly.
func ctyToGo(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	t := v.Type()
	switch {
	case t.Equals(cty.String):
		return v.AsString(), nil
	case t.Equals(cty.Bool):
		return v.True(), nil
	case t.Equals(cty.Number):
		return Number(v.AsBigFloat().Text('f', -1)), nil
	case t.IsListType() || t.IsTupleType() || t.IsSetType():
		out := []any{}
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			e, err := ctyToGo(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	case t.IsMapType() || t.IsObjectType():
		out := map[string]any{}
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			e, err := ctyToGo(ev)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = e
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value type %s", t.FriendlyName())
}
