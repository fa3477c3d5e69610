package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gookit/color"
	"github.com/radovskyb/watcher"
	"github.com/spf13/cobra"

	"github.com/insushim/iswaddon/internal/archive"
	"github.com/insushim/iswaddon/internal/project"
)

const debounceDuration = 500 * time.Millisecond

func projectRoot(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return "."
}

func parseTargets(packs []string) (project.Target, error) {
	if len(packs) == 0 {
		return project.All, nil
	}
	var t project.Target
	for _, p := range packs {
		switch p {
		case "mcaddon":
			t |= project.Addon
		case "bp":
			t |= project.BehaviorPack
		case "rp":
			t |= project.ResourcePack
		default:
			return 0, fmt.Errorf("unknown pack %q (want mcaddon, bp or rp)", p)
		}
	}
	return t, nil
}

func newBuildCmd(a *app) *cobra.Command {
	var (
		packs []string
		clean bool
	)
	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Build the add-on project in dir",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := parseTargets(packs)
			if err != nil {
				return err
			}
			b, err := project.NewBuilder(projectRoot(args))
			if err != nil {
				return err
			}
			if clean {
				if err := b.Clean(); err != nil {
					return err
				}
			}
			res, err := b.Build(targets)
			if err != nil {
				return err
			}
			md := res.Build.Metadata
			color.Printf("<green>Built</> %s %s: %d entities, %d items, %d blocks, %d recipes\n",
				md.Name, md.Version, md.EntityCount, md.ItemCount, md.BlockCount, md.RecipeCount)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&packs, "pack", nil, "archives to write: mcaddon, bp, rp (default all)")
	cmd.Flags().BoolVar(&clean, "clean", false, "empty the output directory first")
	return cmd
}

type notifier struct {
	out      func()
	notified bool
	lock     sync.Mutex
}

// notify runs out once per debounce window no matter how many changes
// arrive inside it.
func (n *notifier) notify() {
	n.lock.Lock()
	defer n.lock.Unlock()
	if !n.notified {
		n.notified = true
		go func() {
			time.Sleep(debounceDuration)
			n.out()
			n.lock.Lock()
			n.notified = false
			defer n.lock.Unlock()
		}()
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Rebuild the add-on project whenever its files change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := project.NewBuilder(projectRoot(args))
			if err != nil {
				return err
			}
			rebuild := func() {
				if _, err := b.Build(project.All); err != nil {
					color.Printf("<red>Build failed:</> %s\n", err)
				}
			}
			rebuild()

			w := watcher.New()
			defer w.Close()
			w.FilterOps(watcher.Write, watcher.Create, watcher.Remove, watcher.Rename, watcher.Move)
			paths, err := b.WatchedFiles()
			if err != nil {
				return err
			}
			outDir, err := b.OutputDir()
			if err != nil {
				return err
			}
			w.Ignore(outDir)
			for _, p := range paths {
				info, err := os.Stat(p)
				if err != nil {
					a.logger.Warn("not watching", "path", p, "err", err)
					continue
				}
				if info.IsDir() {
					err = w.AddRecursive(p)
				} else {
					err = w.Add(p)
				}
				if err != nil {
					return err
				}
			}

			n := &notifier{out: rebuild}
			go func() {
				for {
					select {
					case e := <-w.Event:
						a.logger.Debug("change", "op", e.Op, "path", e.Path)
						n.notify()
					case err := <-w.Error:
						a.logger.Error("watcher", "err", err)
					case <-w.Closed:
						return
					}
				}
			}()
			go func() {
				<-cmd.Context().Done()
				w.Close()
			}()

			color.Printf("Watching <cyan>%s</> (Ctrl+C to stop)\n", b.Root())
			if err := w.Start(interval); err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 200*time.Millisecond, "polling interval")
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <archive>",
		Short: "List the files in an .mcaddon or .mcpack archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			paths, err := archive.List(data)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			color.Printf("<grey>%d files</>\n", len(paths))
			return nil
		},
	}
}
