package provenance

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/aegis-scan/aegis/pkg/engine/remediation"
)

// ruleSchema matches one top-level block type: rule "<code>" { ... }.
var ruleSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "rule", LabelNames: []string{"code"}},
	},
}

// LoadRuleDir reads every *.hcl file in dir and registers the remediation
// template declared in each "rule" block, overwriting any built-in
// template with a matching rule code. Intended to run once at startup; a
// malformed file or an incomplete rule block is skipped rather than
// aborting the whole load.
func LoadRuleDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rule dir %s: %w", dir, err)
	}

	parser := hclparse.NewParser()
	var loaded []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".hcl") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		f, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			continue
		}
		codes, err := loadRuleFile(f)
		if err != nil {
			continue
		}
		loaded = append(loaded, codes...)
	}
	return loaded, nil
}

func loadRuleFile(f *hcl.File) ([]string, error) {
	content, _, diags := f.Body.PartialContent(ruleSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	var codes []string
	for _, block := range content.Blocks {
		if block.Type != "rule" || len(block.Labels) != 1 {
			continue
		}
		code := block.Labels[0]
		tmpl, err := decodeRuleBlock(block)
		if err != nil {
			continue
		}
		remediation.Register(code, tmpl)
		codes = append(codes, code)
	}
	return codes, nil
}

func decodeRuleBlock(block *hcl.Block) (remediation.Template, error) {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return remediation.Template{}, diags
	}

	var tmpl remediation.Template
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() || val.Type() != cty.String {
			continue
		}
		switch name {
		case "title":
			tmpl.Title = val.AsString()
		case "script":
			tmpl.ScriptBody = val.AsString()
		case "notes":
			tmpl.Notes = val.AsString()
		}
	}
	if tmpl.Title == "" || tmpl.ScriptBody == "" {
		return remediation.Template{}, fmt.Errorf("rule block missing required title/script attribute")
	}
	return tmpl, nil
}
