package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pg-graphquery/internal/request"
)

// DocumentOptions select the record kind and the query document of a
// command.
type DocumentOptions struct {
	Record string
	File   string
	Limit  uint64
	Cursor string
	Count  bool
}

func (d *DocumentOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&d.Record, "record", "r", "entity", "record kind (data_type|property_type|entity_type|entity)")
	cmd.Flags().StringVarP(&d.File, "file", "f", "-", "query document, JSON or YAML (- reads stdin)")
	cmd.Flags().Uint64Var(&d.Limit, "limit", 0, "page size, overriding the document")
	cmd.Flags().StringVar(&d.Cursor, "cursor", "", "continue after this cursor, overriding the document")
	cmd.Flags().BoolVar(&d.Count, "count", false, "count the matching records instead of reading them")
}

// load reads the document and applies the flags that override it.
func (d *DocumentOptions) load(cmd *cobra.Command) (request.Document, error) {
	var r io.Reader
	if d.File == "" || d.File == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(d.File)
		if err != nil {
			return request.Document{}, fmt.Errorf("%w: %v", request.ErrInvalidDocument, err)
		}
		defer f.Close()
		r = f
	}

	doc, err := request.DecodeReader(r)
	if err != nil {
		return request.Document{}, err
	}
	if cmd.Flags().Changed("limit") {
		limit := d.Limit
		doc.Limit = &limit
	}
	if d.Cursor != "" {
		doc.Cursor = d.Cursor
	}
	return doc, nil
}
