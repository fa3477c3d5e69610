package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/insushim/iswaddon"
	"github.com/insushim/iswaddon/internal/concept"
)

var errNoAPIKey = errors.New("no gemini api key configured (set GEMINI_API_KEY)")

func newConceptCmd(a *app) *cobra.Command {
	var (
		req       concept.Request
		expand    bool
		raw       bool
		outDir    string
		namespace string
	)
	cmd := &cobra.Command{
		Use:   "concept <description>",
		Short: "Analyze an add-on idea, or expand it into a buildable add-on",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := a.expander()
			if err != nil {
				return err
			}
			if exp == nil {
				return errNoAPIKey
			}
			req.Concept = strings.Join(args, " ")

			if expand {
				return expandConcept(cmd, exp, req, outDir, namespace)
			}
			res, err := exp.Analyze(cmd.Context(), req)
			if err != nil {
				return err
			}
			if raw {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			out, err := renderMarkdown(analysisMarkdown(res))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar((*string)(&req.ConceptType), "type", "auto", "concept type: auto, entity, item, block, addon")
	cmd.Flags().StringVar(&req.Language, "lang", concept.LanguageKorean, "answer language: ko or en")
	cmd.Flags().BoolVar(&raw, "json", false, "print the raw analysis")
	cmd.Flags().BoolVar(&expand, "expand", false, "expand the idea into definitions and build an add-on")
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory for --expand")
	cmd.Flags().StringVar(&namespace, "namespace", "custom", "identifier namespace for --expand")
	return cmd
}

func expandConcept(cmd *cobra.Command, exp *concept.Expander, req concept.Request, outDir, namespace string) error {
	ex, err := exp.Expand(cmd.Context(), req.Concept, req.Language)
	if err != nil {
		return err
	}
	name := gjson.GetBytes(ex.Raw, "displayName").String()
	if name == "" {
		name = gjson.GetBytes(ex.Raw, "identifier").String()
	}
	if name == "" {
		name = "Generated Addon"
	}
	b, err := iswaddon.NewBuilder(iswaddon.AddonConfig{
		Name:        name,
		Namespace:   namespace,
		Description: gjson.GetBytes(ex.Raw, "description").String(),
	})
	if err != nil {
		return err
	}
	if err := ex.Bundle.AddTo(b); err != nil {
		var batch *iswaddon.BatchError
		if !errors.As(err, &batch) {
			return err
		}
		for _, f := range batch.Failures {
			color.Printf("<yellow>skipped</> %s\n", f)
		}
	}
	res, err := b.Build()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	p := filepath.Join(outDir, iswaddon.FolderName(name)+".mcaddon")
	if err := os.WriteFile(p, res.Addon, 0o644); err != nil {
		return err
	}
	color.Printf("<green>Wrote</> %s (quality %d): %d entities, %d items, %d blocks\n",
		p, ex.Quality, res.Metadata.EntityCount, res.Metadata.ItemCount, res.Metadata.BlockCount)
	return nil
}

func analysisMarkdown(res *concept.Result) string {
	a := gjson.ParseBytes(res.Analysis)
	var b strings.Builder
	title := a.Get("displayName").String()
	if title == "" {
		title = a.Get("name").String()
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Type:** %s", res.Type)
	if d := a.Get("difficulty").String(); d != "" {
		fmt.Fprintf(&b, " · **Difficulty:** %s", d)
	}
	b.WriteString("\n\n")
	if d := a.Get("description").String(); d != "" {
		b.WriteString(d + "\n\n")
	}
	section := func(title, path string) {
		items := a.Get(path).Array()
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n", title)
		for _, it := range items {
			text := it.String()
			if it.IsObject() {
				text = strings.TrimSpace(fmt.Sprintf("`%s` %s", it.Get("type").String(), it.Get("description").String()))
			}
			fmt.Fprintf(&b, "- %s\n", text)
		}
		b.WriteString("\n")
	}
	section("Features", "features")
	section("Components", "components")
	section("Behaviors", "behaviors")
	section("Suggestions", "suggestions")
	section("Warnings", "warnings")
	if len(res.Detailed) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, res.Detailed, "", "  "); err == nil {
			fmt.Fprintf(&b, "## Detailed %s\n\n```json\n%s\n```\n", res.Type, pretty.String())
		}
	}
	return b.String()
}

func renderMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
