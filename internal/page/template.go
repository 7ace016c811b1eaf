package page

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"sync"

	"github.com/dmorgan81/promptgrid/internal/config"
	"github.com/dmorgan81/promptgrid/internal/log"
	"github.com/samber/do"
)

//go:embed assets/index.html
var indexTmpl string

type Params struct {
	Title    string
	Endpoint string
	Model    string
	Count    int
}

// Templator renders the single page the browser talks to. The rendered page
// is cached since its inputs are fixed for the life of the process.
type Templator struct {
	Params Params

	once sync.Once
	page []byte
	err  error
}

func NewTemplator(i *do.Injector) (*Templator, error) {
	return &Templator{Params: do.MustInvokeNamed[Params](i, "page_params")}, nil
}

func DefaultParams(cfg *config.Config, endpoint string, count int) Params {
	return Params{
		Title:    "AI Image Generator",
		Endpoint: endpoint,
		Model:    cfg.Model,
		Count:    count,
	}
}

func (g *Templator) Template(ctx context.Context) ([]byte, error) {
	g.once.Do(func() {
		log.FromContextOrDiscard(ctx).WithGroup("templator").Info("rendering page")
		tmpl, err := template.New("index").Parse(indexTmpl)
		if err != nil {
			g.err = err
			return
		}

		var data bytes.Buffer
		if g.err = tmpl.Execute(&data, g.Params); g.err == nil {
			g.page = data.Bytes()
		}
	})
	return g.page, g.err
}
