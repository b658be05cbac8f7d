package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/bft-labs/slicesync/internal/cliconfig"
	"github.com/bft-labs/slicesync/pkg/docstore"
)

// render writes v in the configured output format. Values go through JSON
// first so YAML output uses the same field names.
func (a *app) render(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	if a.cfg.Output == cliconfig.OutputYAML {
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		_, err = fmt.Fprintf(w, "---\n%s", out)
		return err
	}

	_, err = fmt.Fprintln(w, string(raw))
	return err
}

// documentView is a document with its state decoded for display.
type documentView struct {
	ID     string `json:"_id"`
	Rev    string `json:"_rev,omitempty"`
	Origin string `json:"origin,omitempty"`
	State  any    `json:"state,omitempty"`
}

func viewOf(doc docstore.Document) documentView {
	v := documentView{ID: doc.ID, Rev: doc.Rev, Origin: doc.Origin}
	if doc.HasState() {
		var state any
		if err := json.Unmarshal(doc.State, &state); err == nil {
			v.State = state
		} else {
			v.State = string(doc.State)
		}
	}
	return v
}

type changeView struct {
	Seq uint64        `json:"seq"`
	ID  string        `json:"id"`
	Rev string        `json:"rev"`
	Doc *documentView `json:"doc,omitempty"`
}

func changeViewOf(c docstore.Change) changeView {
	v := changeView{Seq: c.Seq, ID: c.ID, Rev: c.Rev}
	if c.Doc != nil {
		d := viewOf(*c.Doc)
		v.Doc = &d
	}
	return v
}
