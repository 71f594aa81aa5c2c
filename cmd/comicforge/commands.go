package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/attachment"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/export"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/logging"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/mcp"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/optimizer"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/pipeline"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func encodeFiles(files []string) ([]model.Attachment, error) {
	encoder := attachment.NewEncoder()
	attachments := make([]model.Attachment, 0, len(files))
	for _, file := range files {
		encoded, err := encoder.FromFile(file)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, encoded)
	}
	return attachments, nil
}

func printJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(value)
}

func newScriptCmd(a *app) *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "script [topic]",
		Short: "Draft a four-panel comic script and print it as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := strings.Join(args, " ")
			attachments, err := encodeFiles(files)
			if err != nil {
				return err
			}
			if strings.TrimSpace(topic) == "" && len(attachments) == 0 {
				return pipeline.ErrEmptyRequest
			}

			script, _, err := a.adapters.GenerateStructuredScript(cmd.Context(), topic, attachments, a.cfg.Text)
			if err != nil {
				return err
			}
			return printJSON(cmd, script)
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "reference file (image, PDF, text or Markdown); repeatable")
	return cmd
}

// scriptFile stands in for the script writer when the user already has an edited script.
type scriptFile struct {
	script model.ComicScript
}

func (s scriptFile) GenerateStructuredScript(ctx context.Context, topic string, attachments []model.Attachment, cfg model.TextConfig) (model.ComicScript, model.GenerationMetadata, error) {
	return s.script, nil, nil
}

func loadScript(path string) (model.ComicScript, error) {
	data, err := afero.ReadFile(afero.NewOsFs(), path)
	if err != nil {
		return model.ComicScript{}, utils.WrapIfNotNil(err, path)
	}
	script, err := model.ParseScript(string(data))
	if err != nil {
		return model.ComicScript{}, utils.WrapIfNotNil(err, path)
	}
	return script, nil
}

func newRenderCmd(a *app) *cobra.Command {
	var (
		files      []string
		scriptPath string
		outDir     string
		toolsURL   string
		toolsAuth  string
	)

	cmd := &cobra.Command{
		Use:   "render [topic]",
		Short: "Draft a script, then draw and narrate every panel and export the comic",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			topic := strings.Join(args, " ")
			attachments, err := encodeFiles(files)
			if err != nil {
				return err
			}

			var writer pipeline.ScriptWriter = a.adapters
			if scriptPath != "" {
				script, err := loadScript(scriptPath)
				if err != nil {
					return err
				}
				writer = scriptFile{script: script}
				if strings.TrimSpace(topic) == "" {
					topic = script.Title
				}
			}

			var (
				illustrator pipeline.PanelIllustrator = a.adapters
				narrator    pipeline.PanelNarrator    = a.adapters
			)
			if toolsURL != "" {
				remote, err := mcp.DialRemoteTools(ctx, toolsURL, toolsAuth)
				if err != nil {
					return err
				}
				defer remote.Close()
				remoteMedia := mcp.NewRemoteMedia(remote, a.blobs)
				illustrator, narrator = remoteMedia, remoteMedia
			}

			p := pipeline.New(writer, illustrator, narrator, a.cfg.PipelineConfig(), pipeline.WithReleaser(a.blobs))
			script, err := p.GenerateScript(ctx, topic, attachments)
			if err != nil {
				return err
			}
			out := cmd.ErrOrStderr()
			fmt.Fprintf(out, "%s (%d panels)\n", script.Title, len(script.Panels))
			if dropped := p.Status().DroppedAttachments; dropped > 0 {
				fmt.Fprintf(out, "warning: %d attachment(s) were not sent to the text backend\n", dropped)
			}

			updates, err := p.Render(ctx)
			if err != nil {
				return err
			}
			for update := range updates {
				switch update.Kind {
				case pipeline.UpdateImage:
					fmt.Fprintf(out, "panel %d: drawn\n", update.Index+1)
				case pipeline.UpdateAudio:
					if update.Audio == nil {
						fmt.Fprintf(out, "panel %d: no narration\n", update.Index+1)
					} else {
						fmt.Fprintf(out, "panel %d: narrated\n", update.Index+1)
					}
				}
			}

			status := p.Status()
			if status.State != pipeline.StateDone {
				if status.Err != nil {
					return status.Err
				}
				return fmt.Errorf("rendering stopped in state %s", status.State)
			}

			manifest, err := export.New(export.WithBlobs(a.blobs)).Export(ctx, outDir, p.Snapshot())
			if err != nil {
				return err
			}
			return printJSON(cmd, manifest)
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "reference file (image, PDF, text or Markdown); repeatable")
	cmd.Flags().StringVar(&scriptPath, "script", "", "render an existing script JSON instead of drafting a new one")
	cmd.Flags().StringVarP(&outDir, "out", "o", "comic", "export directory")
	cmd.Flags().StringVar(&toolsURL, "tools-url", "", "draw and narrate through a comicforge MCP server at this URL, e.g. http://host:8080/mcp")
	cmd.Flags().StringVar(&toolsAuth, "tools-auth", "", "Authorization header value sent to the tools server")
	return cmd
}

func newSpeakCmd(a *app) *cobra.Command {
	var (
		voice   string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "Narrate one line of dialogue into an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Audio
			if voice != "" {
				cfg.Voice = voice
			}

			ref, _, err := a.adapters.GenerateSpeech(cmd.Context(), args[0], cfg)
			if err != nil {
				return err
			}
			if ref == nil {
				return errors.New("no audio was produced")
			}

			var data []byte
			switch {
			case model.IsInlinePCM(*ref):
				pcm, err := model.DecodeInlinePCM(*ref)
				if err != nil {
					return err
				}
				data, err = export.EncodeWAV(pcm, export.PCMSampleRate, export.PCMChannels)
				if err != nil {
					return err
				}
			case model.IsBlobReference(*ref):
				blob, ok := a.blobs.Get(*ref)
				if !ok {
					return errors.New("audio expired before it could be written")
				}
				data = blob.Data
			default:
				return fmt.Errorf("unsupported audio reference %.16s", *ref)
			}

			if err := afero.WriteFile(afero.NewOsFs(), outPath, data, 0o644); err != nil {
				return utils.WrapIfNotNil(err, outPath)
			}
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&voice, "voice", "", "voice name (default from config)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "speech.wav", "output audio file")
	return cmd
}

func newOptimizeCmd(a *app) *cobra.Command {
	var current optimizer.VideoMetadata

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Polish a video title and description for Chinese short-video platforms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			optimized, err := optimizer.New(a.adapters, a.cfg.OptimizerText()).Optimize(cmd.Context(), current)
			if err != nil {
				return err
			}
			return printJSON(cmd, optimized)
		},
	}
	cmd.Flags().StringVar(&current.Title, "title", "", "current title")
	cmd.Flags().StringVar(&current.Description, "description", "", "current description")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the comic tools over MCP (stdio by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server := mcp.NewServer(a.adapters, mcp.Defaults{
				Text:      a.cfg.Text,
				Image:     a.cfg.Image,
				Audio:     a.cfg.Audio,
				Optimizer: a.cfg.OptimizerText(),
			}, mcp.WithBlobs(a.blobs))

			if addr == "" {
				return server.ServeStdio()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           server.Handler(a.metrics.Registry()),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
			}()

			logging.NewLogger(ctx).Infof("serving MCP on http://%s%s", addr, mcp.EndpointPath)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return utils.WrapIfNotNil(err, addr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "http", "", "serve streamable HTTP on this address instead of stdio, with metrics at /metrics")
	return cmd
}
