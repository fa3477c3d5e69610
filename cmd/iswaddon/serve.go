package main

import (
	"github.com/spf13/cobra"

	"github.com/insushim/iswaddon/internal/concept"
	"github.com/insushim/iswaddon/internal/gemini"
	"github.com/insushim/iswaddon/internal/server"
	"github.com/insushim/iswaddon/internal/store"
)

// expander returns nil when no API key is configured.
func (a *app) expander() (*concept.Expander, error) {
	g := a.cfg.Gemini
	if g.APIKey == "" {
		return nil, nil
	}
	client, err := gemini.NewClient(gemini.Config{
		APIKey:     g.APIKey,
		BaseURL:    g.BaseURL,
		Model:      g.Model,
		Timeout:    g.Timeout,
		MaxRetries: g.MaxRetries,
		Backoff:    g.Backoff,
	}, a.logger.WithPrefix("gemini"))
	if err != nil {
		return nil, err
	}
	return concept.NewExpander(client, a.logger.WithPrefix("concept")), nil
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the add-on generation HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := a.cfg.Server
			if addr != "" {
				sc.Addr = addr
			}
			var opts []server.Option
			exp, err := a.expander()
			if err != nil {
				return err
			}
			if exp != nil {
				opts = append(opts, server.WithExpander(exp))
			} else {
				a.logger.Warn("no gemini api key; concept analysis is disabled")
			}
			if a.cfg.Store.Path != "" {
				st, err := store.Open(a.cfg.Store.Path)
				if err != nil {
					return err
				}
				defer st.Close()
				opts = append(opts, server.WithStore(st))
			}

			srv, err := server.New(server.Config{
				Addr:              sc.Addr,
				ReadHeaderTimeout: sc.ReadHeaderTimeout,
				WriteTimeout:      sc.WriteTimeout,
				ConceptRate:       a.cfg.RateLimit.Concept,
				AddonRate:         a.cfg.RateLimit.Addon,
			}, a.logger.WithPrefix("http"), opts...)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
