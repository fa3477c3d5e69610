package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/insushim/iswaddon/internal/server"
)

func newRemoteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a running generation service (server.url)",
	}
	cmd.AddCommand(newRemoteGenerateCmd(a), newRemoteListCmd(a))
	return cmd
}

func (a *app) client() *http.Client {
	return &http.Client{Timeout: 2 * time.Minute}
}

func (a *app) endpoint(path string) string {
	return strings.TrimSuffix(a.cfg.Server.URL, "/") + path
}

// remoteError turns a non-200 answer into an error carrying the service's
// error body.
func remoteError(res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	var e struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("service sent status %d: %s: %s", res.StatusCode, e.Error, e.Details)
	}
	return fmt.Errorf("service sent status %d; body %s", res.StatusCode, body)
}

func newRemoteGenerateCmd(a *app) *cobra.Command {
	var (
		file   string
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Send a generate request file and save the returned archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, a.endpoint("/api/generate/addon"), bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			res, err := a.client().Do(req)
			if err != nil {
				return err
			}
			defer res.Body.Close()
			if res.StatusCode != http.StatusOK {
				return remoteError(res)
			}
			var gen server.GenerateResponse
			if err := json.NewDecoder(res.Body).Decode(&gen); err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			for _, d := range []server.Download{gen.Downloads.Mcaddon, gen.Downloads.BehaviorPack, gen.Downloads.ResourcePack} {
				p := filepath.Join(outDir, filepath.Base(d.Filename))
				if err := os.WriteFile(p, d.Data, 0o644); err != nil {
					return err
				}
				color.Printf("Wrote <grey>%s</>\n", p)
			}
			for _, f := range gen.Failures {
				color.Printf("<yellow>rejected</> %s %d %s: %s\n", f.Kind, f.Index, f.Identifier, f.Error)
			}
			color.Printf("<green>Addon</> %s (%s)\n", gen.Metadata.Name, gen.AddonID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "generate request JSON file")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRemoteListCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent builds stored by the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, a.endpoint(fmt.Sprintf("/api/addons?limit=%d", limit)), nil)
			if err != nil {
				return err
			}
			res, err := a.client().Do(req)
			if err != nil {
				return err
			}
			defer res.Body.Close()
			if res.StatusCode != http.StatusOK {
				return remoteError(res)
			}
			var list struct {
				Addons []struct {
					ID        string    `json:"id"`
					CreatedAt time.Time `json:"createdAt"`
					Metadata  struct {
						Name    string `json:"name"`
						Version string `json:"version"`
					} `json:"metadata"`
				} `json:"addons"`
			}
			if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
				return err
			}
			for _, r := range list.Addons {
				color.Fprintf(cmd.OutOrStdout(), "<cyan>%s</>  %s  %s %s\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Metadata.Name, r.Metadata.Version)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of builds to list")
	return cmd
}
