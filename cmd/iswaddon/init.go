package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/erikgeiser/promptkit/confirmation"
	"github.com/erikgeiser/promptkit/selection"
	"github.com/erikgeiser/promptkit/textinput"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/insushim/iswaddon"
	"github.com/insushim/iswaddon/internal/project"
)

var engineVersions = []string{"1.21.50", "1.21.0", "1.20.80", "1.20.0"}

func newInitCmd(a *app) *cobra.Command {
	var (
		m         project.Manifest
		scripting bool
	)
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create an addon.yaml project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := projectRoot(args)
			if err := os.MkdirAll(root, 0o755); err != nil {
				return err
			}
			if m.Name == "" {
				abs, err := filepath.Abs(root)
				if err != nil {
					return err
				}
				m.Name = filepath.Base(abs)
			}
			if term.IsTerminal(int(os.Stdin.Fd())) && !cmd.Flags().Changed("namespace") {
				if err := prompt(&m, &scripting); err != nil {
					return err
				}
			}
			if m.Namespace == "" {
				m.Namespace = defaultNamespace(m.Name)
			}
			if scripting {
				m.Scripting = &project.Scripting{ServerVersion: iswaddon.DefaultServerVersion}
			}
			p, err := project.Init(root, &m)
			if err != nil {
				return err
			}
			color.Printf("<green>Created</> %s\n", p)
			return nil
		},
	}
	cmd.Flags().StringVar(&m.Name, "name", "", "add-on name (default: directory name)")
	cmd.Flags().StringVar(&m.Namespace, "namespace", "", "identifier namespace")
	cmd.Flags().StringVar(&m.Description, "description", "", "add-on description")
	cmd.Flags().BoolVar(&scripting, "scripting", false, "enable the scripting API")
	return cmd
}

func prompt(m *project.Manifest, scripting *bool) error {
	name := textinput.New("Add-on name:")
	name.InitialValue = m.Name
	name.Validate = func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New("name is required")
		}
		return nil
	}
	v, err := name.RunPrompt()
	if err != nil {
		return err
	}
	m.Name = strings.TrimSpace(v)

	ns := textinput.New("Namespace:")
	ns.InitialValue = defaultNamespace(m.Name)
	ns.Validate = func(s string) error {
		if !iswaddon.ValidNamespace(s) {
			return fmt.Errorf("%q must start with a lowercase letter and use only a-z, 0-9 and _", s)
		}
		return nil
	}
	if m.Namespace, err = ns.RunPrompt(); err != nil {
		return err
	}

	engine := selection.New("Minimum engine version:", engineVersions)
	if m.MinEngineVersion, err = engine.RunPrompt(); err != nil {
		return err
	}

	def := confirmation.No
	if *scripting {
		def = confirmation.Yes
	}
	if *scripting, err = confirmation.New("Enable the scripting API?", def).RunPrompt(); err != nil {
		return err
	}
	return nil
}

// defaultNamespace derives a valid namespace from an add-on name.
func defaultNamespace(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9' && b.Len() > 0:
			b.WriteRune(r)
		case (r == ' ' || r == '-' || r == '_') && b.Len() > 0:
			b.WriteByte('_')
		}
	}
	ns := strings.Trim(b.String(), "_")
	if !iswaddon.ValidNamespace(ns) {
		return "custom"
	}
	return ns
}
