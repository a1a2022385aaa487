package hcl_adapter

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/runbookgo/internal/runbook"
)

const (
	blockThen = "then"
	blockElse = "else"
)

// blockKinds maps operation block types to operation kinds.
var blockKinds = map[string]runbook.Kind{
	"multi_node": runbook.KindMultiNode,
	"if_else":    runbook.KindIfElse,
	"decision":   runbook.KindDecision,
	"rpa":        runbook.KindRpa,
	"exec":       runbook.KindExecStmt,
}

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "variable", LabelNames: []string{"name"}},
		{Type: "runbook", LabelNames: []string{"name"}},
	},
}

var variableSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "type"},
		{Name: "default"},
		{Name: "description"},
	},
}

// operationBlocks are the block types that may appear in a sequence.
var operationBlocks = []hcl.BlockHeaderSchema{
	{Type: "multi_node"},
	{Type: "if_else"},
	{Type: "decision"},
	{Type: "rpa"},
	{Type: "exec"},
}

var runbookSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "description"},
		{Name: "version"},
	},
	Blocks: operationBlocks,
}

var branchSchema = &hcl.BodySchema{Blocks: operationBlocks}

var commonAttributes = []hcl.AttributeSchema{
	{Name: "name"},
	{Name: "description"},
}

func withCommon(attrs ...hcl.AttributeSchema) []hcl.AttributeSchema {
	return append(append([]hcl.AttributeSchema(nil), commonAttributes...), attrs...)
}

var commandAttributes = []hcl.AttributeSchema{
	{Name: "command"},
	{Name: "tool"},
	{Name: "timeout"},
}

var operationSchemas = map[runbook.Kind]*hcl.BodySchema{
	runbook.KindMultiNode: {
		Attributes: withCommon(hcl.AttributeSchema{Name: "targets", Required: true}),
		Blocks:     operationBlocks,
	},
	runbook.KindIfElse: {
		Attributes: withCommon(),
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "decision"},
			{Type: blockThen},
			{Type: blockElse},
		},
	},
	runbook.KindDecision: {
		Attributes: withCommon(
			hcl.AttributeSchema{Name: "condition"},
			hcl.AttributeSchema{Name: "expression"},
		),
		Blocks: []hcl.BlockHeaderSchema{{Type: "rpa"}, {Type: "exec"}},
	},
	runbook.KindRpa: {
		Attributes: withCommon(commandAttributes...),
		Blocks:     []hcl.BlockHeaderSchema{{Type: "exec"}},
	},
	runbook.KindExecStmt: {
		Attributes: withCommon(commandAttributes...),
	},
}
