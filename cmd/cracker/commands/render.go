/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: render.go
Description: Terminal rendering for the Akaylee Cracker. Draws cracked trees and model
templates with lipgloss styles, truncates values by display width and prints batch
summaries as tables.
*/

package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/kleascm/akaylee-cracker/pkg/core"
	"github.com/kleascm/akaylee-cracker/pkg/dom"
	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"
)

// maxValueWidth bounds rendered values in display columns
const maxValueWidth = 48

var (
	colorAccent  = lipgloss.Color("#7D56F4")
	colorMuted   = lipgloss.Color("#626262")
	colorSuccess = lipgloss.Color("#04B575")
	colorError   = lipgloss.Color("#FF5F87")

	nameStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	typeStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	valueStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle = lipgloss.NewStyle().Foreground(colorError)
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// truncateValue cuts s to maxValueWidth display columns
func truncateValue(s string) string {
	if runewidth.StringWidth(s) <= maxValueWidth {
		return s
	}
	return runewidth.Truncate(s, maxValueWidth, "…")
}

// RenderTree writes a cracked tree with spans and values
func RenderTree(w io.Writer, title string, root *core.Node) {
	fmt.Fprintln(w, titleStyle.Render(title))
	if root == nil {
		fmt.Fprintln(w, errorStyle.Render("  (no tree)"))
		return
	}
	root.Walk(func(n *core.Node, depth int) {
		line := strings.Repeat("  ", depth) +
			nameStyle.Render(n.Name) + " " +
			typeStyle.Render(fmt.Sprintf("%s [%d:%d]", n.Type, n.Start, n.Stop))
		if n.Value != "" {
			line += " = " + valueStyle.Render(truncateValue(n.Value))
		}
		fmt.Fprintln(w, line)
	})
}

// RenderTemplate writes a model's element tree with its declarations
func RenderTemplate(w io.Writer, root dom.Element) {
	var visit func(e dom.Element, depth int)
	visit = func(e dom.Element, depth int) {
		line := strings.Repeat("  ", depth) + nameStyle.Render(e.Name()) + " " + typeStyle.Render(describe(e))
		if v := e.Base().DefaultValue; v != nil {
			line += " = " + valueStyle.Render(truncateValue(core.FormatValue(v)))
		}
		fmt.Fprintln(w, line)

		switch v := e.(type) {
		case *dom.Array:
			visit(v.Template, depth+1)
		case *dom.Choice:
			for _, alt := range v.Alternatives() {
				visit(alt, depth+1)
			}
		case dom.Container:
			for _, c := range v.Children() {
				visit(c, depth+1)
			}
		}
	}
	visit(root, 0)
}

// describe summarises an element's declaration
func describe(e dom.Element) string {
	parts := []string{dom.TypeName(e)}
	base := e.Base()

	switch v := e.(type) {
	case *dom.Number:
		order := "be"
		if v.LittleEndian {
			order = "le"
		}
		sign := "u"
		if v.Signed {
			sign = "s"
		}
		parts = append(parts, fmt.Sprintf("%s%d %s", sign, v.Size, order))
	case *dom.Flags:
		parts = append(parts, fmt.Sprintf("%d bits", v.Size))
	case *dom.Flag:
		parts = append(parts, fmt.Sprintf("bits %d+%d", v.Position, v.Size))
	case *dom.String:
		parts = append(parts, v.Encoding.String())
		if v.NullTerminated {
			parts = append(parts, "nul")
		}
	case *dom.Array:
		maxOccurs := "*"
		if v.MaxOccurs != dom.Unbounded {
			maxOccurs = fmt.Sprint(v.MaxOccurs)
		}
		parts = append(parts, fmt.Sprintf("%d..%s", v.MinOccurs, maxOccurs))
	}
	if base.HasLength {
		parts = append(parts, fmt.Sprintf("length %d %s", base.Length, base.LengthType))
	}
	if base.IsToken {
		parts = append(parts, "token")
	}
	for _, r := range base.Relations {
		desc := fmt.Sprintf("%s-of %s", r.Kind, r.Of)
		if r.ExpressionGet != "" {
			desc += " (" + r.ExpressionGet + ")"
		}
		parts = append(parts, desc)
	}
	if base.Analyzer != nil {
		parts = append(parts, "analyzer "+base.Analyzer.Name())
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// RenderSummary writes per-sample results and the batch summary as tables
func RenderSummary(w io.Writer, results []*core.CrackResult, summary core.Summary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"sample", "status", "consumed", "duration", "failure"})
	for _, r := range results {
		failure := ""
		if r.Failure != nil {
			failure = r.Failure.Kind
			if r.Failure.Path != "" {
				failure += " at " + r.Failure.Path
			}
		}
		table.Append([]string{
			truncateValue(r.SampleName),
			r.Status.String(),
			fmt.Sprintf("%d bytes", r.ConsumedBits/8),
			r.Duration.Round(time.Microsecond).String(),
			failure,
		})
	}
	table.Render()

	stats := tablewriter.NewWriter(w)
	stats.SetHeader([]string{"samples", "cracked", "failed", "timeouts", "mean time", "stddev time", "p95 time", "mean bytes"})
	stats.Append([]string{
		fmt.Sprint(summary.Samples),
		fmt.Sprint(summary.Cracked),
		fmt.Sprint(summary.Failed),
		fmt.Sprint(summary.Timeouts),
		summary.MeanDuration.Round(time.Microsecond).String(),
		summary.StdDevDuration.Round(time.Microsecond).String(),
		summary.P95Duration.Round(time.Microsecond).String(),
		fmt.Sprintf("%.1f", summary.MeanBytes),
	})
	stats.Render()
}
