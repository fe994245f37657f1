package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshharrison/critpath/internal/host"
	"github.com/joshharrison/critpath/internal/project"
	"github.com/joshharrison/critpath/internal/state"
	"github.com/joshharrison/critpath/internal/ui"
	"github.com/joshharrison/critpath/internal/validate"
	"github.com/joshharrison/critpath/internal/viewer"
)

func workerCmd() *cobra.Command {
	var flagEcho bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the schedule engine as a JSON-lines worker over stdin/stdout",
		Long: `Reads one JSON message per line from stdin and writes one response per
line to stdout:

  {"type":"compute","id":"r1","project":{...}}  -> {"type":"result","id":"r1","cpm":{...}}
  {"type":"ping","id":"p1"}                      -> {"type":"pong","id":"p1"}

Requests arriving while a computation is running are coalesced: only the
newest pending one is computed, older ones are answered with
{"type":"superseded"}.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			var out io.Writer = os.Stdout
			if flagEcho {
				out = io.MultiWriter(os.Stdout, ui.NewStreamFormatter(os.Stderr, nil))
			}

			log.Debugf("worker reading from stdin")
			err := host.Serve(ctx, os.Stdin, out,
				host.WithLogger(log),
				host.WithResultBuffer(cfg.Server.ResultBuffer),
			)
			if errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&flagEcho, "echo", false, "Echo a readable line per response to stderr")

	return cmd
}

func serveCmd() *cobra.Command {
	var (
		flagAddr   string
		flagAssets string
		flagOpen   bool
	)

	cmd := &cobra.Command{
		Use:   "serve [project-file]",
		Short: "Serve the viewer API and push live schedules over websocket",
		Long: `Starts the viewer API. Projects POSTed to /project are computed in the
background; the latest schedule is available from /schedule, /graph and
/issues and every new result is pushed to /ws clients. When a project file
is given it is computed as soon as the server starts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.MergeWithFlags("", flagAddr)
			if viewer.IsPortOpen(cfg.Server.Addr) {
				return fmt.Errorf("something is already listening on %s", cfg.Server.Addr)
			}

			opts := []viewer.Option{
				viewer.WithLogger(log),
				viewer.WithState(state.New(cfg.StateDir)),
				viewer.WithPrepare(prepareProject),
				viewer.WithHostOptions(host.WithResultBuffer(cfg.Server.ResultBuffer)),
			}
			if flagAssets != "" {
				opts = append(opts, viewer.WithAssets(os.DirFS(flagAssets)))
			}
			v := viewer.New(opts...)

			ctx, cancel := signalContext()
			defer cancel()

			if len(args) == 1 {
				p, _, err := loadProject(args[0])
				if err != nil {
					return err
				}
				id, err := v.Submit("", p)
				if err != nil {
					return err
				}
				log.Infof("queued %s as %s", args[0], id)
			}

			url := "http://" + cfg.Server.Addr
			if !flagJSON {
				ui.PrintBanner()
			}
			fmt.Printf("🖥️  %s %s\n", ui.BoldCyan("Viewer API:"), url)
			if flagOpen {
				go func() {
					time.Sleep(300 * time.Millisecond)
					openBrowser(url)
				}()
			}

			return v.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (default from config: 127.0.0.1:7420)")
	cmd.Flags().StringVar(&flagAssets, "assets", "", "Directory of a built viewer UI to serve")
	cmd.Flags().BoolVar(&flagOpen, "open", false, "Open the viewer in a browser")

	return cmd
}

// prepareProject applies config defaults and schema migration to a project
// received over the API.
func prepareProject(p *project.Project) {
	cfg.ApplyDefaults(p)
	rep := validate.Migrate(p, time.Now())
	for _, is := range rep.Issues {
		log.Debugf("migrate %s: %s", is.Sev, is.Msg)
	}
}
