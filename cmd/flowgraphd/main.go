// Command flowgraphd loads a schematic built in-process from a small demo
// definition, runs it through the interpreter engine, and prints the
// resulting output stream trace, styled the way the teacher's graph
// visualization prints ASCII diagrams.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/flowgraph/interp/component"
	"github.com/flowgraph/interp/component/fixtures"
	"github.com/flowgraph/interp/config"
	"github.com/flowgraph/interp/interpreter"
	"github.com/flowgraph/interp/log"
	"github.com/flowgraph/interp/packet"
	"github.com/flowgraph/interp/schematic"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	portStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("flowgraphd: "+err.Error()))
		os.Exit(1)
	}
}

func run() error {
	logger := log.NewDefaultLogger(log.LogLevelInfo)

	def := schematic.Definition{
		Nodes: []schematic.NodeSpec{
			{Name: schematic.InputNodeName, Outputs: []schematic.PortSignature{{Name: "greeting", Type: "string"}}},
			{
				Name:      "shout",
				Operation: schematic.OperationRef{Namespace: "demo", Name: "upper"},
				Inputs:    []schematic.PortSignature{{Name: "input", Type: "string"}},
				Outputs:   []schematic.PortSignature{{Name: "output", Type: "string"}},
			},
			{Name: schematic.OutputNodeName, Inputs: []schematic.PortSignature{{Name: "result", Type: "string"}}},
		},
		Connections: []schematic.ConnectionSpec{
			{FromNode: schematic.InputNodeName, FromPort: "greeting", ToNode: "shout", ToPort: "input"},
			{FromNode: "shout", FromPort: "output", ToNode: schematic.OutputNodeName, ToPort: "result"},
		},
	}

	s, err := schematic.Build(def)
	if err != nil {
		return fmt.Errorf("build schematic: %w", err)
	}

	if errs := schematic.ValidateEarly(s); len(errs) > 0 {
		return fmt.Errorf("schematic invalid: %v", errs[0])
	}

	components := []component.Component{fixtures.Upper{Namespace: "demo"}}
	eng, err := interpreter.New(s, components, config.WithHangTimeout(5*time.Second))
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	eng = eng.WithLogger(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	inputs := map[string][]packet.Packet{
		"greeting": {
			packet.OkScalar("greeting", "hello from the flow graph"),
			packet.Done("greeting"),
		},
	}

	out, err := eng.Invoke(ctx, inputs)
	if err != nil {
		return fmt.Errorf("invoke: %w", err)
	}

	fmt.Println(headerStyle.Render("flowgraphd — output trace"))
	for r := range out {
		fmt.Printf("  %s %s\n", portStyle.Render(r.Port+":"), r.Packet.String())
	}
	return nil
}
