package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

func (e *OutputFormat) String() string {
	if e == nil || *e == "" {
		return string(OutputFormatText)
	}
	return string(*e)
}

func (e *OutputFormat) Set(v string) error {
	switch OutputFormat(v) {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		*e = OutputFormat(v)
		return nil
	}
	return errors.New(`must be one of "text", "json", or "yaml"`)
}

func (e *OutputFormat) Type() string {
	return "format"
}

// OutputRenderer prints structured results for scripts.
type OutputRenderer interface {
	Display(resource any, format OutputFormat) error
}

type DefaultRenderer struct {
	w io.Writer
}

func (r *DefaultRenderer) Display(resource any, format OutputFormat) error {
	switch format {
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(r.w)
		encoder.SetIndent(2)
		if err := encoder.Encode(resource); err != nil {
			return err
		}
		return encoder.Close()
	case OutputFormatJSON:
		encoder := json.NewEncoder(r.w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(resource)
	default:
		_, err := fmt.Fprintf(r.w, "%v\n", resource)
		return err
	}
}

func renderer(cmdOut io.Writer, injected OutputRenderer) OutputRenderer {
	if injected != nil {
		return injected
	}
	return &DefaultRenderer{w: cmdOut}
}
