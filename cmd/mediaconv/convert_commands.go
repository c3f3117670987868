package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gwlsn/mediaconv/internal/events"
	"github.com/gwlsn/mediaconv/internal/formats"
	"github.com/gwlsn/mediaconv/internal/imageconv"
	"github.com/gwlsn/mediaconv/internal/jobs"
	"github.com/gwlsn/mediaconv/internal/logger"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var (
		format     string
		kindFlag   string
		videoCodec string
		audioCodec string
		frameRate  float64
		noHistory  bool
	)

	cmd := &cobra.Command{
		Use:   "convert <input> [output]",
		Short: "Convert an audio or video file, printing progress",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			// Keep stdout for the progress display.
			if cfg.LogFile == "" {
				logger.SetOutput(cmd.ErrOrStderr(), cfg.LogFormat)
			}

			kind := formats.KindOf(format)
			if kindFlag != "" {
				k, ok := formats.ParseKind(kindFlag)
				if !ok || k == formats.KindImage {
					return fmt.Errorf("--kind must be audio or video, got %q", kindFlag)
				}
				kind = k
			}
			if kind != formats.KindAudio && kind != formats.KindVideo {
				return fmt.Errorf("cannot infer media kind of %q; pass --kind", format)
			}

			req := jobs.Request{
				InputPath:       args[0],
				Format:          format,
				Kind:            kind,
				VideoCodec:      videoCodec,
				AudioCodec:      audioCodec,
				FrameRate:       frameRate,
				CustomFrameRate: frameRate > 0,
			}
			req.OutputPath, err = outputArg(args, format)
			if err != nil {
				return err
			}

			ch := events.NewChannel()
			ch.Attach(newProgressPrinter(cmd.OutOrStdout()))
			defer ch.Detach()

			var recorder jobs.Recorder
			if !noHistory {
				st, err := ctx.openStore()
				if err != nil {
					logger.Warn("Job history unavailable", "error", err)
				} else {
					defer st.Close()
					recorder = st
				}
			}

			ctrl, err := ctx.newController(ch, recorder)
			if err != nil {
				return err
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result := ctrl.Convert(sigCtx, req)
			if !result.Success {
				return errors.New(result.Error)
			}
			if info, err := os.Stat(req.OutputPath); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", req.OutputPath, humanize.Bytes(uint64(info.Size())))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Target format token, e.g. mp3, m4a, mp4")
	cmd.Flags().StringVar(&kindFlag, "kind", "", "Media kind (audio or video); inferred from --format when empty")
	cmd.Flags().StringVar(&videoCodec, "video-codec", "", "Video codec override (video only)")
	cmd.Flags().StringVar(&audioCodec, "audio-codec", "", "Audio codec override (video only)")
	cmd.Flags().Float64Var(&frameRate, "fps", 0, "Output frame rate (video only)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record the job in the history database")
	_ = cmd.MarkFlagRequired("format")
	return cmd
}

func newImageCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:         "image <input> [output]",
		Short:       "Convert a still image",
		Args:        cobra.RangeArgs(1, 2),
		Annotations: skipConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := outputArg(args, format)
			if err != nil {
				return err
			}
			result := imageconv.Convert(args[0], output, format)
			if !result.Success {
				return errors.New(result.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Target image format: jpg, png, gif, bmp or tiff")
	_ = cmd.MarkFlagRequired("format")
	return cmd
}

// outputArg returns the explicit output argument or the derived default.
func outputArg(args []string, format string) (string, error) {
	if len(args) > 1 && args[1] != "" {
		return args[1], nil
	}
	return formats.OutputPath(args[0], format)
}
