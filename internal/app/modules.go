package app

import (
	"github.com/specialistvlad/runbookgo/internal/hcl_adapter"
	"github.com/specialistvlad/runbookgo/internal/registry"
	"github.com/specialistvlad/runbookgo/internal/runbook"
	"github.com/specialistvlad/runbookgo/internal/yaml_adapter"
	"github.com/specialistvlad/runbookgo/modules/cel_oracle"
	"github.com/specialistvlad/runbookgo/modules/http_client"
	"github.com/specialistvlad/runbookgo/modules/llm"
	"github.com/specialistvlad/runbookgo/modules/mcp_client"
	"github.com/specialistvlad/runbookgo/modules/metrics"
	"github.com/specialistvlad/runbookgo/modules/print"
	"github.com/specialistvlad/runbookgo/modules/s3"
	"github.com/specialistvlad/runbookgo/modules/socketio_client"
	"github.com/specialistvlad/runbookgo/modules/static"
)

// CoreModules returns the definitive list of all modules that are compiled
// into the runbookgo binary. A fresh list is returned because some modules
// hold connections.
func CoreModules() []registry.Module {
	return []registry.Module{
		&mcp_client.Module{},
		&http_client.Module{},
		&socketio_client.Module{},
		&print.Module{},
		&llm.Module{},
		&cel_oracle.Module{},
		&static.Module{},
		&metrics.Module{},
		&s3.Module{},
	}
}

// NewLoader returns the loader for every supported runbook format.
func NewLoader() runbook.ExtensionLoader {
	hclLoader := hcl_adapter.NewLoader()
	yamlLoader := yaml_adapter.NewLoader()
	return runbook.ExtensionLoader{
		".hcl":  hclLoader,
		".yaml": yamlLoader,
		".yml":  yamlLoader,
	}
}
